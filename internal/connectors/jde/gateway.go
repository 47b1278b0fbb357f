// Package jde posts inventory issue documents to the JDE orchestrator
// and serves the cached item master lookups the pipeline performs
// against it.
package jde

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driven"
	"github.com/millhouse-foods/erpsync/internal/httpx"
)

// documentTypeInventoryIssue is the JDE document type for stock depletions.
const documentTypeInventoryIssue = "II"

// dateLayout is the dd/mm/yyyy form the orchestrator expects on dates.
const dateLayout = "02/01/2006"

// proactiveRate throttles outbound calls so the AIS server's own
// limiter is rarely hit; the hosted tier locks records with 423 under
// bursts.
const proactiveRate = 4.0

// Ensure Gateway implements the interface.
var _ driven.DestinationGateway = (*Gateway)(nil)

// Gateway posts dispatch orders to JDE.
type Gateway struct {
	config *Config
	client *httpx.Client
	cache  driven.ResponseCache
	now    func() time.Time
}

// New creates a gateway for the given config. Item master reads are
// memoized through the supplied cache; a nil cache disables
// memoization but not the lookups themselves.
func New(cfg *Config, cache driven.ResponseCache) *Gateway {
	return &Gateway{
		config: cfg,
		client: httpx.NewClient(httpx.Options{RatePerSec: proactiveRate}),
		cache:  cache,
		now:    time.Now,
	}
}

// inventoryIssue is the wire form of a dispatch order.
type inventoryIssue struct {
	BranchPlant     string    `json:"Branch_Plant"`
	DocumentType    string    `json:"Document_Type"`
	Explanation     string    `json:"Explanation"`
	SelectRow       string    `json:"Select_Row"`
	GridData        []gridRow `json:"GridData"`
	GLDate          string    `json:"G_L_Date"`
	TransactionDate string    `json:"Transaction_Date"`
}

type gridRow struct {
	ItemNumber string `json:"Item_Number"`
	Quantity   string `json:"Quantity"`
	Unit       string `json:"UM"`
	LotNumber  string `json:"LOTN"`
}

// Dispatch posts one inventory issue document and returns the raw
// response body on acceptance. Rejections surface as *httpx.APIError
// with the response body intact.
func (g *Gateway) Dispatch(ctx context.Context, order domain.DispatchOrder) ([]byte, error) {
	date := order.TransactionDate
	if date.IsZero() {
		date = g.now().UTC()
	}

	payload := inventoryIssue{
		BranchPlant:  order.BranchPlant,
		DocumentType: documentTypeInventoryIssue,
		Explanation:  order.Explanation,
		SelectRow:    "1",
		GridData: []gridRow{
			{
				ItemNumber: order.ItemNumber,
				Quantity:   order.Quantity,
				Unit:       ToERPUnit(order.Unit),
				LotNumber:  order.LotLabel,
			},
		},
		GLDate:          date.Format(dateLayout),
		TransactionDate: date.Format(dateLayout),
	}

	resp, err := g.client.Do(ctx, httpx.Request{
		Method:    http.MethodPost,
		URL:       g.config.InventoryIssueURL,
		Body:      payload,
		BasicAuth: &httpx.BasicAuth{Username: g.config.Username, Password: g.config.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("posting inventory issue: %w", err)
	}
	return resp.Body, nil
}

// ItemMaster returns the item master row for an item in a branch
// plant, or domain.ErrNotFound when the ERP does not list it. The
// branch plant listing is fetched once per freshness window and the
// row extracted locally.
func (g *Gateway) ItemMaster(ctx context.Context, branchPlant, itemNumber string) ([]byte, error) {
	if g.config.ItemMasterURL == "" {
		return nil, nil
	}

	resp, err := g.client.DoCached(ctx, g.cache, g.itemMasterRequest(branchPlant))
	if err != nil {
		return nil, fmt.Errorf("fetching item master for %s: %w", branchPlant, err)
	}

	rows, err := decodeItemRows(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding item master for %s: %w", branchPlant, err)
	}

	for _, row := range rows {
		if itemNumberOf(row) == itemNumber {
			encoded, err := json.Marshal(row)
			if err != nil {
				return nil, fmt.Errorf("encoding item master row: %w", err)
			}
			return encoded, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ActivityCacheKey returns the cache key under which a branch plant's
// item master listing is memoized. A dispatch changes that listing's
// underlying data, so the orchestrator invalidates this key after
// every accepted order. Blank when lookups are disabled.
func (g *Gateway) ActivityCacheKey(branchPlant string) string {
	if g.config.ItemMasterURL == "" {
		return ""
	}
	req := g.itemMasterRequest(branchPlant)
	return httpx.CacheKey(req.URL, req.Query, req.Body)
}

func (g *Gateway) itemMasterRequest(branchPlant string) httpx.Request {
	query := map[string]string{"bu": branchPlant}
	if g.config.GLCategory != "" {
		query["glCat"] = g.config.GLCategory
	}
	return httpx.Request{
		Method:    http.MethodGet,
		URL:       g.config.ItemMasterURL,
		Query:     query,
		BasicAuth: &httpx.BasicAuth{Username: g.config.Username, Password: g.config.Password},
	}
}

// decodeItemRows accepts a JSON array of item rows, an object wrapping
// rows under "rowset" (how the orchestrator pages grid data), or a
// bare row object. The last form appears when the cache has unwrapped
// a one-row listing.
func decodeItemRows(body []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if raw, ok := obj["rowset"]; ok {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(encoded, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	return []map[string]any{obj}, nil
}

// itemNumberOf extracts the item number from a row regardless of
// whether the orchestrator rendered it as a string or a number.
func itemNumberOf(row map[string]any) string {
	v, ok := row["Item_Number"]
	if !ok {
		return ""
	}
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return fmt.Sprintf("%.0f", n)
	default:
		return fmt.Sprint(n)
	}
}
