package domain

import (
	"fmt"
	"strings"
)

// CandidateTransaction is one ingredient depletion flattened out of the
// ops system's nested action payload. It is the unit of work the
// dispatch pipeline operates on.
type CandidateTransaction struct {
	ActionID       string
	IngredientID   string
	IngredientName string
	Unit           string
	LotID          string
	LotNumber      string
	VesselID       string
	VesselCode     string

	// Quantity is the raw quantity as received from the source,
	// kept as a string so no precision is lost before re-quantization.
	Quantity string

	// UniqueTransactionID is the derived identity. Populated by the
	// source connector; recomputed by the orchestrator when blank.
	UniqueTransactionID string
}

// TransactionKey derives the deterministic identity for a transaction
// from its semantic fields: ingredient name, lot number, vessel code
// and normalized quantity. Two transactions with the same four
// components are the same transaction; any difference in any component
// makes a different one. Blank components render as empty strings so
// the key shape stays stable.
func TransactionKey(ingredientName, lotNumber, vesselCode, rawQuantity string) string {
	return fmt.Sprintf("%s_%s_%s_%s",
		ingredientName, lotNumber, vesselCode, NormalizeQuantity(rawQuantity))
}

// Key returns the candidate's identity, deriving it when the source
// connector did not populate it.
func (c *CandidateTransaction) Key() string {
	if c.UniqueTransactionID != "" {
		return c.UniqueTransactionID
	}
	return TransactionKey(c.IngredientName, c.LotNumber, c.VesselCode, c.Quantity)
}

// LotLabel derives the lot/location label sent to the ERP: the lot
// number with a leading "{ingredientName}_" prefix stripped when the
// ops system embedded one, otherwise the raw lot number.
func (c *CandidateTransaction) LotLabel() string {
	prefix := c.IngredientName + "_"
	if c.LotNumber != "" && strings.HasPrefix(c.LotNumber, prefix) {
		return strings.TrimPrefix(c.LotNumber, prefix)
	}
	return c.LotNumber
}

// Dispatchable reports whether the candidate carries everything the
// destination requires. Zero/blank quantity, blank unit and blank
// ingredient name are skipped before any payload is built.
func (c *CandidateTransaction) Dispatchable() bool {
	return !IsZeroQuantity(c.Quantity) &&
		strings.TrimSpace(c.Unit) != "" &&
		strings.TrimSpace(c.IngredientName) != ""
}
