package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownUnit indicates a unit code with no ERP mapping.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrLedgerWrite indicates the dispatch ledger could not persist
	// an outcome. The orchestrator must stop rather than continue with
	// destination state it cannot account for.
	ErrLedgerWrite = errors.New("ledger write failed")
)
