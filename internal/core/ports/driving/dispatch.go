// Package driving defines the inbound ports through which the CLI
// drives the dispatch pipeline.
package driving

import (
	"context"
	"time"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// DispatchRunner runs one batch of the dispatch pipeline.
type DispatchRunner interface {
	// Dispatch fetches candidates effective since the given time,
	// sends each eligible one to the destination exactly once, and
	// returns the aggregated per-item results. One item's failure
	// never aborts the batch; only a ledger write failure does.
	Dispatch(ctx context.Context, since time.Time) (*BatchReport, error)
}

// BatchReport aggregates the outcome of one dispatch run.
type BatchReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []domain.DispatchResult

	Dispatched int
	Skipped    int
	Failed     int
}
