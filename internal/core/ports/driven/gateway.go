package driven

import (
	"context"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// DestinationGateway posts dispatch orders to the ERP and performs the
// read lookups the pipeline needs against it. Implementations are pure
// transport plus payload shaping: no ledger or cache writes happen
// behind this interface.
type DestinationGateway interface {
	// Dispatch sends one order to the ERP's inventory-adjustment
	// endpoint and returns the raw response body on acceptance.
	// Destination rejections surface as typed errors carrying the
	// response body verbatim so validation detail is not lost.
	Dispatch(ctx context.Context, order domain.DispatchOrder) ([]byte, error)

	// ItemMaster looks up an item in the ERP's item master for a
	// branch plant. The lookup is memoized through the response cache;
	// domain.ErrNotFound means the ERP does not know the item.
	ItemMaster(ctx context.Context, branchPlant, itemNumber string) ([]byte, error)

	// ActivityCacheKey returns the cache key of the branch plant's
	// item-activity read so the orchestrator can invalidate it after a
	// dispatch changes the underlying data.
	ActivityCacheKey(branchPlant string) string
}
