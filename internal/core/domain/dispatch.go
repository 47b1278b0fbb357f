package domain

import (
	"time"
	"unicode/utf8"
)

// Status is the ledger state of a transaction identity.
type Status string

const (
	// StatusAbsent means no ledger row exists for the identity yet.
	StatusAbsent Status = ""

	// StatusDone means the transaction was accepted by the destination.
	// This is the only state that suppresses redispatch.
	StatusDone Status = "done"

	// StatusError means the last attempt was rejected or failed.
	StatusError Status = "error"
)

// StatusDetailLimit bounds the status_detail column so unbounded
// upstream error bodies cannot bloat the ledger.
const StatusDetailLimit = 699

// DispatchRecord is one row of the dispatch ledger: the outcome of the
// most recent attempt for a transaction identity. Exactly one row
// exists per UniqueTransactionID; status and detail are overwritten on
// every subsequent attempt, the identity fields never are.
type DispatchRecord struct {
	UniqueTransactionID string
	ActionID            string
	IngredientID        string
	LotID               string
	VesselID            string
	VesselCode          string
	IngredientName      string
	Unit                string
	Status              Status
	StatusDetail        string
	CreatedAt           time.Time
}

// TruncateDetail clamps a status detail string to StatusDetailLimit
// bytes, backing off to a rune boundary so the stored text stays
// valid UTF-8.
func TruncateDetail(detail string) string {
	if len(detail) <= StatusDetailLimit {
		return detail
	}
	cut := StatusDetailLimit
	for cut > 0 && !utf8.RuneStart(detail[cut]) {
		cut--
	}
	return detail[:cut]
}

// DispatchOrder is the destination-facing instruction built by the
// orchestrator once a candidate has passed validation: routing code,
// source unit and quantity, derived lot label. The gateway converts
// the unit to its ERP code when serializing.
type DispatchOrder struct {
	BranchPlant     string
	ItemNumber      string
	Explanation     string
	Quantity        string
	Unit            string
	LotLabel        string
	TransactionDate time.Time
}

// DispatchResult is the per-item outcome reported for every processed
// candidate. A batch run aggregates these instead of failing outright
// on a single item's error.
type DispatchResult struct {
	UniqueTransactionID string
	IngredientName      string
	Success             bool
	Skipped             bool
	Message             string

	// Detail carries the destination's response body on success, or
	// the error detail on failure, truncated to the ledger limit.
	Detail string
}
