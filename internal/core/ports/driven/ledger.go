package driven

import (
	"context"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// DispatchLedger persists one record per unique transaction identity.
// It is the single shared mutable resource in the pipeline; all writes
// go through RecordOutcome's atomic upsert.
type DispatchLedger interface {
	// StatusOf returns the recorded status for an identity.
	// StatusAbsent is returned when no row exists.
	StatusOf(ctx context.Context, uniqueTransactionID string) (domain.Status, error)

	// RecordOutcome inserts or updates the row for the record's
	// identity. On conflict only status and status_detail are
	// overwritten; the identity fields keep their original values.
	// The upsert is atomic with respect to the uniqueness constraint:
	// two writers racing on the same identity never produce two rows.
	// A failed write is reported to the caller and never retried here.
	RecordOutcome(ctx context.Context, rec domain.DispatchRecord) error

	// Recent returns the most recently created records, newest first,
	// up to limit.
	Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error)
}
