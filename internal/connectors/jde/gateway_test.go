package jde

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
	"github.com/millhouse-foods/erpsync/internal/httpx"
)

type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string][]byte{}} }

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	if body, ok := f.entries[key]; ok {
		return body, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCache) Put(_ context.Context, key string, body []byte) error {
	f.entries[key] = body
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func TestGateway_DispatchPayload(t *testing.T) {
	var captured inventoryIssue
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "jde-user", user)
		assert.Equal(t, "jde-pass", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	gw := New(&Config{
		InventoryIssueURL: srv.URL,
		Username:          "jde-user",
		Password:          "jde-pass",
	}, nil)

	body, err := gw.Dispatch(context.Background(), domain.DispatchOrder{
		BranchPlant:     "1110",
		ItemNumber:      "Flour",
		Explanation:     "BAKERYOPS. DEPL: 101:act-1",
		Quantity:        "5.0",
		Unit:            "kg",
		LotLabel:        "LOT1",
		TransactionDate: time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"accepted"}`, string(body))

	assert.Equal(t, "1110", captured.BranchPlant)
	assert.Equal(t, "II", captured.DocumentType)
	assert.Equal(t, "BAKERYOPS. DEPL: 101:act-1", captured.Explanation)
	assert.Equal(t, "1", captured.SelectRow)
	require.Len(t, captured.GridData, 1)
	assert.Equal(t, "Flour", captured.GridData[0].ItemNumber)
	assert.Equal(t, "5.0", captured.GridData[0].Quantity)
	assert.Equal(t, "KG", captured.GridData[0].Unit)
	assert.Equal(t, "LOT1", captured.GridData[0].LotNumber)
	assert.Equal(t, "28/08/2026", captured.GLDate)
	assert.Equal(t, "28/08/2026", captured.TransactionDate)
}

func TestGateway_DispatchRejectionKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Item FLR-99 not found in branch 1110"}`))
	}))
	defer srv.Close()

	gw := New(&Config{InventoryIssueURL: srv.URL, Username: "u", Password: "p"}, nil)

	_, err := gw.Dispatch(context.Background(), domain.DispatchOrder{BranchPlant: "1110", ItemNumber: "FLR-99"})
	require.Error(t, err)

	var apiErr *httpx.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, string(apiErr.Body), "FLR-99 not found")
}

func TestGateway_ItemMasterLookup(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "1110", r.URL.Query().Get("bu"))
		w.Write([]byte(`[{"Item_Number":"Flour","F4101_UOM1":"KG"},{"Item_Number":"Sugar","F4101_UOM1":"KG"}]`))
	}))
	defer srv.Close()

	cache := newFakeCache()
	gw := New(&Config{
		InventoryIssueURL: "unused",
		ItemMasterURL:     srv.URL,
		Username:          "u",
		Password:          "p",
	}, cache)
	ctx := context.Background()

	row, err := gw.ItemMaster(ctx, "1110", "Flour")
	require.NoError(t, err)
	assert.Contains(t, string(row), `"Item_Number":"Flour"`)

	// The second lookup for the same branch plant is served from cache.
	_, err = gw.ItemMaster(ctx, "1110", "Sugar")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	_, err = gw.ItemMaster(ctx, "1110", "Unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGateway_ItemMasterSingleRowListing(t *testing.T) {
	// A one-row listing is unwrapped to a bare object by the cache;
	// the second lookup must still find the item.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"Item_Number":"Flour","F4101_UOM1":"KG"}]`))
	}))
	defer srv.Close()

	cache := newFakeCache()
	gw := New(&Config{InventoryIssueURL: "unused", ItemMasterURL: srv.URL, Username: "u", Password: "p"}, cache)
	ctx := context.Background()

	// Seed the cache with the unwrapped form, as the sqlite cache stores it.
	key := gw.ActivityCacheKey("1110")
	require.NoError(t, cache.Put(ctx, key, []byte(`{"Item_Number":"Flour","F4101_UOM1":"KG"}`)))

	row, err := gw.ItemMaster(ctx, "1110", "Flour")
	require.NoError(t, err)
	assert.Contains(t, string(row), "Flour")
}

func TestGateway_ItemMasterDisabled(t *testing.T) {
	gw := New(&Config{InventoryIssueURL: "unused", Username: "u", Password: "p"}, nil)

	row, err := gw.ItemMaster(context.Background(), "1110", "Flour")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Empty(t, gw.ActivityCacheKey("1110"))
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{InventoryIssueURL: "https://jde.example.com/ia", Username: "u", Password: "p"}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, (&Config{Username: "u", Password: "p"}).Validate(), domain.ErrInvalidInput)
	assert.ErrorIs(t, (&Config{InventoryIssueURL: "x"}).Validate(), domain.ErrInvalidInput)
}
