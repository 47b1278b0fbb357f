package jde

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// unitMap translates ERP unit-of-measure codes to the ops system's
// units. The ERP side is always upper case, the ops side is whatever
// the ops system uses natively.
var unitMap = map[string]string{
	"KG": "kg",
	"EA": "each",
	"LT": "L",
	"M2": "m2",
	"C2": "c2",
	"PK": "pack",
	"ST": "ST",
	"FN": "FN",
	"GR": "g",
	"ML": "mL",
}

var reverseUnitMap = reverse(unitMap)

// rateUnitMap translates ERP codes for addition-rate units.
var rateUnitMap = map[string]string{
	"KG": "g/L",
	"EA": "each/L",
	"LT": "mL/L",
	"M2": "m2/L",
	"C2": "c2/L",
	"PK": "pack/L",
}

var reverseRateUnitMap = reverse(rateUnitMap)

// conversionFactors holds the multipliers between unit pairs that do
// not convert one-to-one. Pairs absent from the map convert with
// factor 1.
var conversionFactors = map[[2]string]string{
	{"KG", "g"}:  "1000",
	{"KG", "L"}:  "1",
	{"g", "KG"}:  "0.001",
	{"L", "KG"}:  "1",
	{"L", "ml"}:  "1000",
	{"ml", "L"}:  "0.001",
	{"EA", "EA"}: "1",
	{"each", "EA"}: "1",
	{"pack", "PK"}: "1",
	{"c2", "M2"}:   "1",
	{"m2", "C2"}:   "1",
	{"KG", "kg"}:   "1",
	{"kg", "KG"}:   "1",
}

func reverse(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// IsERPUnit reports whether a unit is a known ERP unit code.
func IsERPUnit(unit string) bool {
	_, ok := unitMap[unit]
	return ok
}

// ValidateUnit checks that a unit has an ERP mapping. Blank units are
// accepted here; dispatchability of blank units is decided upstream.
func ValidateUnit(unit string) error {
	if unit == "" {
		return nil
	}
	if _, ok := unitMap[strings.ToUpper(unit)]; !ok {
		return fmt.Errorf("unit %q has no ERP mapping: %w", unit, domain.ErrUnknownUnit)
	}
	return nil
}

// ToERPUnit converts an ops-system unit to its ERP code. Unknown units
// fall back to their upper-case form.
func ToERPUnit(unit string) string {
	if code, ok := reverseUnitMap[unit]; ok {
		return code
	}
	if code, ok := reverseUnitMap[strings.ToLower(unit)]; ok {
		return code
	}
	return strings.ToUpper(unit)
}

// FromERPUnit converts an ERP code to the ops-system unit. Unknown
// codes fall back to their lower-case form.
func FromERPUnit(unit string) string {
	if u, ok := unitMap[strings.ToUpper(unit)]; ok {
		return u
	}
	return strings.ToLower(unit)
}

// ToERPRateUnit converts an ops-system addition-rate unit to its ERP code.
func ToERPRateUnit(unit string) string {
	if code, ok := reverseRateUnitMap[strings.ToLower(unit)]; ok {
		return code
	}
	return strings.ToUpper(unit)
}

// FromERPRateUnit converts an ERP addition-rate code to the ops-system unit.
func FromERPRateUnit(unit string) string {
	if u, ok := rateUnitMap[strings.ToUpper(unit)]; ok {
		return u
	}
	return strings.ToLower(unit)
}

// ConvertQuantity converts a quantity between units using the
// conversion factor table, with exact decimal arithmetic so the
// converted value can safely feed a transaction identity. Unit pairs
// without a factor pass through unchanged.
func ConvertQuantity(sourceUnit, targetUnit, quantity string) (string, error) {
	source := normalizeUnitCase(sourceUnit)
	target := normalizeUnitCase(targetUnit)

	if source == target {
		return quantity, nil
	}

	factor, ok := conversionFactors[[2]string{source, target}]
	if !ok {
		factor = "1"
	}

	q, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil {
		return "", fmt.Errorf("converting quantity %q: %w", quantity, domain.ErrInvalidInput)
	}
	f, err := decimal.NewFromString(factor)
	if err != nil {
		return "", fmt.Errorf("bad conversion factor %q: %w", factor, err)
	}

	return q.Mul(f).Round(domain.QuantityPrecision).String(), nil
}

// normalizeUnitCase keeps ERP codes upper case and lower-cases
// everything else, matching the case convention of the factor table.
func normalizeUnitCase(unit string) string {
	if IsERPUnit(unit) {
		return unit
	}
	return strings.ToLower(unit)
}
