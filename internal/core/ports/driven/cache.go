package driven

import "context"

// ResponseCache memoizes idempotent read responses, keyed by a
// normalized hash of the request shape. Entries are valid only within
// a freshness window; read-after-write consistency is caller-driven
// through Invalidate, never automatic.
type ResponseCache interface {
	// Get returns the cached response body for a key, or
	// domain.ErrNotFound when the entry is absent or stale. Entries
	// found to hold empty/meaningless bodies are purged on read.
	Get(ctx context.Context, cacheKey string) ([]byte, error)

	// Put stores a response body. Empty or meaningless bodies (an
	// empty JSON list usually means a transient "no results yet" race,
	// not a true empty result) are refused so a later retry is not
	// wrongly suppressed.
	Put(ctx context.Context, cacheKey string, body []byte) error

	// Invalidate removes an entry. Called after any mutation that
	// could affect the cached resource's future reads.
	Invalidate(ctx context.Context, cacheKey string) error
}
