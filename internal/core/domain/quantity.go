package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityPrecision is the number of fractional digits preserved when a
// quantity crosses the boundary between the ops system and the ERP.
// Both systems store quantities with at most nine decimal places, so
// re-quantizing at this precision is lossless.
const QuantityPrecision = 9

// NormalizeQuantity renders a quantity value in the canonical form used
// inside transaction identities: fixed-point with up to nine decimal
// places, trailing zeros and a trailing decimal point stripped. "5",
// "5.0" and "5.000000000" all normalize to "5".
//
// Malformed input is returned unchanged rather than rejected. Identity
// derivation must never block the pipeline; a garbage quantity yields a
// garbage (but stable) identity that simply never matches a real one.
func NormalizeQuantity(value string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return value
	}
	normalized := d.StringFixed(QuantityPrecision)
	normalized = strings.TrimRight(normalized, "0")
	normalized = strings.TrimRight(normalized, ".")
	if normalized == "" || normalized == "-" {
		return "0"
	}
	return normalized
}

// PreservePrecision rounds a quantity half-up to maxDecimals fractional
// digits. Called whenever a quantity crosses a system boundary so that
// float rounding can never silently change a transaction's identity
// between the two systems. Malformed input yields zero.
func PreservePrecision(value string, maxDecimals int32) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero
	}
	return d.Round(maxDecimals)
}

// IsZeroQuantity reports whether a raw quantity value is empty, zero or
// unparseable. Such candidates are never dispatchable.
func IsZeroQuantity(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return true
	}
	return d.IsZero()
}
