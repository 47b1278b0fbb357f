// Package bakeryops fetches production addition actions from the bakery
// ops system and flattens them into candidate inventory transactions.
package bakeryops

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driven"
	"github.com/millhouse-foods/erpsync/internal/httpx"
)

// timestampLayout is the effective-date format the actions endpoint expects.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Ensure Connector implements the interface.
var _ driven.TransactionSource = (*Connector)(nil)

// Connector fetches addition actions from the bakery ops system.
type Connector struct {
	config *Config
	client *httpx.Client
}

// proactiveRate throttles outbound calls ahead of the ops system's
// limiter so batch fetches rarely trip a 429 at all.
const proactiveRate = 2.0

// New creates a connector for the given config. Batch fetches back off
// exponentially from 30s when the ops system rate-limits, mirroring
// the server's documented recovery window.
func New(cfg *Config) *Connector {
	return &Connector{
		config: cfg,
		client: httpx.NewClient(httpx.Options{
			Backoff:    httpx.Backoff{Base: 30 * time.Second, Exponential: true},
			RatePerSec: proactiveRate,
		}),
	}
}

// FetchSince returns the flattened candidate transactions for all
// ADDITION actions effective since the given time, oldest first.
func (c *Connector) FetchSince(ctx context.Context, since time.Time) ([]domain.CandidateTransaction, error) {
	req := httpx.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/outlets/%s/actions", c.config.BaseURL, c.config.OutletID),
		Query: map[string]string{
			"actionTypes":           "ADDITION",
			"includeOutletContents": "true",
			"offset":                "0",
			"size":                  strconv.Itoa(c.config.pageSize()),
			"sort":                  "effectiveAt:1",
			"startEffectiveAt":      since.UTC().Format(timestampLayout),
		},
	}
	if c.config.APIToken != "" {
		req.Header = http.Header{"Authorization": []string{"Access-Token " + c.config.APIToken}}
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching actions: %w", err)
	}

	candidates, err := Flatten(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing actions: %w", err)
	}
	return candidates, nil
}
