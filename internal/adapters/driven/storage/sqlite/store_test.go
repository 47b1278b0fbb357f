package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func countRows(t *testing.T, store *Store, table string) int {
	t.Helper()

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	require.NoError(t, err)
	return count
}

func TestLedgerStore_StatusOfAbsent(t *testing.T) {
	store := setupTestStore(t)
	ledger := store.DispatchLedger()

	status, err := ledger.StatusOf(context.Background(), "Flour_LOT1_V1_5")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbsent, status)
}

func TestLedgerStore_RecordAndRead(t *testing.T) {
	store := setupTestStore(t)
	ledger := store.DispatchLedger()
	ctx := context.Background()

	err := ledger.RecordOutcome(ctx, domain.DispatchRecord{
		UniqueTransactionID: "Flour_LOT1_V1_5",
		ActionID:            "act-1",
		IngredientID:        "ing-1",
		IngredientName:      "Flour",
		Unit:                "KG",
		Status:              domain.StatusDone,
	})
	require.NoError(t, err)

	status, err := ledger.StatusOf(ctx, "Flour_LOT1_V1_5")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
}

func TestLedgerStore_UpsertConvergesOnOneRow(t *testing.T) {
	// A failed dispatch recorded as error, then re-run successfully,
	// must end as a single row carrying the latest status.
	store := setupTestStore(t)
	ledger := store.DispatchLedger()
	ctx := context.Background()

	rec := domain.DispatchRecord{
		UniqueTransactionID: "Flour_LOT1_V1_5",
		ActionID:            "act-1",
		IngredientName:      "Flour",
		Status:              domain.StatusError,
		StatusDetail:        "jde returned 500",
	}
	require.NoError(t, ledger.RecordOutcome(ctx, rec))

	rec.Status = domain.StatusDone
	rec.StatusDetail = ""
	require.NoError(t, ledger.RecordOutcome(ctx, rec))

	assert.Equal(t, 1, countRows(t, store, "dispatch_records"))

	status, err := ledger.StatusOf(ctx, "Flour_LOT1_V1_5")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, status)
}

func TestLedgerStore_DetailTruncated(t *testing.T) {
	store := setupTestStore(t)
	ledger := store.DispatchLedger()
	ctx := context.Background()

	err := ledger.RecordOutcome(ctx, domain.DispatchRecord{
		UniqueTransactionID: "Sugar_LOT2_V2_3",
		Status:              domain.StatusError,
		StatusDetail:        strings.Repeat("x", 2000),
	})
	require.NoError(t, err)

	var detail string
	err = store.db.QueryRow(
		"SELECT status_detail FROM dispatch_records WHERE unique_transaction_id = ?",
		"Sugar_LOT2_V2_3").Scan(&detail)
	require.NoError(t, err)
	assert.Len(t, detail, domain.StatusDetailLimit)
}

func TestLedgerStore_BlankIdentityRejected(t *testing.T) {
	store := setupTestStore(t)
	ledger := store.DispatchLedger()

	err := ledger.RecordOutcome(context.Background(), domain.DispatchRecord{Status: domain.StatusDone})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedgerStore_RecentNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ledger := store.DispatchLedger()
	ctx := context.Background()

	for _, id := range []string{"Flour_L1_V1_5", "Sugar_L2_V1_3", "Salt_L3_V2_1"} {
		require.NoError(t, ledger.RecordOutcome(ctx, domain.DispatchRecord{
			UniqueTransactionID: id,
			Status:              domain.StatusDone,
		}))
	}

	records, err := ledger.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Salt_L3_V2_1", records[0].UniqueTransactionID)
	assert.Equal(t, "Sugar_L2_V1_3", records[1].UniqueTransactionID)
}

func TestResponseCache_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	cache := store.ResponseCache(0)
	ctx := context.Background()

	body := []byte(`{"Item_Number":"FLR-01"}`)
	require.NoError(t, cache.Put(ctx, "key-1", body))

	got, err := cache.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestResponseCache_MissReturnsNotFound(t *testing.T) {
	store := setupTestStore(t)
	cache := store.ResponseCache(0)

	_, err := cache.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResponseCache_RefusesMeaninglessBodies(t *testing.T) {
	store := setupTestStore(t)
	cache := store.ResponseCache(0)
	ctx := context.Background()

	for _, body := range []string{"", "   ", "null", "[]", " [] "} {
		err := cache.Put(ctx, "key-1", []byte(body))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "body %q", body)
	}
	assert.Zero(t, countRows(t, store, "response_cache"))
}

func TestResponseCache_UnwrapsSingleElementArray(t *testing.T) {
	store := setupTestStore(t)
	cache := store.ResponseCache(0)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "key-1", []byte(`[{"Item_Number":"FLR-01"}]`)))

	got, err := cache.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Item_Number":"FLR-01"}`, string(got))

	// Multi-element arrays are stored as-is.
	require.NoError(t, cache.Put(ctx, "key-2", []byte(`[{"a":1},{"a":2}]`)))
	got, err = cache.Get(ctx, "key-2")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a":1},{"a":2}]`, string(got))
}

func TestResponseCache_FirstWriteWins(t *testing.T) {
	store := setupTestStore(t)
	cache := store.ResponseCache(0)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "key-1", []byte(`{"v":1}`)))
	require.NoError(t, cache.Put(ctx, "key-1", []byte(`{"v":2}`)))

	got, err := cache.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
	assert.Equal(t, 1, countRows(t, store, "response_cache"))
}

func TestResponseCache_StaleEntryPurged(t *testing.T) {
	store := setupTestStore(t)
	cache := store.ResponseCache(time.Hour)
	ctx := context.Background()

	_, err := store.db.Exec(`
		INSERT INTO response_cache (cache_key, response_body, created_at)
		VALUES (?, ?, ?)
	`, "old-key", `{"v":1}`, time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = cache.Get(ctx, "old-key")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, countRows(t, store, "response_cache"))
}

func TestResponseCache_StaleEmptyBodyPurgedOnRead(t *testing.T) {
	// An empty list that slipped into the table must not satisfy a
	// read; it is purged so the next fetch hits the wire again.
	store := setupTestStore(t)
	cache := store.ResponseCache(time.Hour)
	ctx := context.Background()

	_, err := store.db.Exec(`
		INSERT INTO response_cache (cache_key, response_body, created_at)
		VALUES (?, ?, ?)
	`, "empty-key", `[]`, time.Now().UTC())
	require.NoError(t, err)

	_, err = cache.Get(ctx, "empty-key")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, countRows(t, store, "response_cache"))
}

func TestResponseCache_Invalidate(t *testing.T) {
	store := setupTestStore(t)
	cache := store.ResponseCache(0)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "key-1", []byte(`{"v":1}`)))
	require.NoError(t, cache.Invalidate(ctx, "key-1"))

	_, err := cache.Get(ctx, "key-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Invalidating an absent key is not an error.
	require.NoError(t, cache.Invalidate(ctx, "never-existed"))
}

func TestStore_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening the same directory replays no migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var version int
	err = store.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
