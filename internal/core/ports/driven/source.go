package driven

import (
	"context"
	"time"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// TransactionSource fetches candidate transactions from the ops
// system. The orchestrator treats the result as an opaque filtered
// list; paging and filtering are the connector's concern.
type TransactionSource interface {
	// FetchSince returns every depletion candidate effective at or
	// after the given time, flattened out of the source's nested
	// action payloads.
	FetchSince(ctx context.Context, since time.Time) ([]domain.CandidateTransaction, error)
}
