package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/millhouse-foods/erpsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/millhouse-foods/erpsync/internal/core/domain"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driven"
)

// DefaultCacheTTL is the freshness window for cached responses.
const DefaultCacheTTL = time.Hour

// Store is a unified SQLite-based storage that provides access to
// the ledger and cache interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.erpsync/data/erpsync.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".erpsync", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "erpsync.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DispatchLedger returns a DispatchLedger interface backed by this store.
func (s *Store) DispatchLedger() driven.DispatchLedger {
	return &ledgerStore{store: s}
}

// ResponseCache returns a ResponseCache interface backed by this store.
// A non-positive ttl falls back to DefaultCacheTTL.
func (s *Store) ResponseCache(ttl time.Duration) driven.ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &responseCache{store: s, ttl: ttl}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Dispatch Ledger ====================

// ledgerStore implements driven.DispatchLedger.
type ledgerStore struct {
	store *Store
}

var _ driven.DispatchLedger = (*ledgerStore)(nil)

// StatusOf returns the recorded status for a transaction identity.
func (s *ledgerStore) StatusOf(ctx context.Context, uniqueTransactionID string) (domain.Status, error) {
	var status string
	err := s.store.db.QueryRowContext(ctx, `
		SELECT status FROM dispatch_records WHERE unique_transaction_id = ?
	`, uniqueTransactionID).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.StatusAbsent, nil
	}
	if err != nil {
		return domain.StatusAbsent, fmt.Errorf("querying dispatch status: %w", err)
	}
	return domain.Status(status), nil
}

// RecordOutcome inserts or updates the ledger row for the record's
// identity. The conflict target is the unique transaction identity,
// so two writers racing on the same transaction converge on one row
// with the latest status. Identity columns are never overwritten.
func (s *ledgerStore) RecordOutcome(ctx context.Context, rec domain.DispatchRecord) error {
	if rec.UniqueTransactionID == "" {
		return domain.ErrInvalidInput
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO dispatch_records
			(unique_transaction_id, action_id, ingredient_id, lot_id, vessel_id,
			 vessel_code, ingredient_name, unit, status, status_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_transaction_id) DO UPDATE SET
			status = excluded.status,
			status_detail = excluded.status_detail
	`, rec.UniqueTransactionID, rec.ActionID, rec.IngredientID, rec.LotID, rec.VesselID,
		rec.VesselCode, rec.IngredientName, rec.Unit, string(rec.Status),
		domain.TruncateDetail(rec.StatusDetail), createdAt)

	if err != nil {
		return fmt.Errorf("recording dispatch outcome: %w", err)
	}
	return nil
}

// Recent returns the newest ledger rows, most recent first.
func (s *ledgerStore) Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT unique_transaction_id, action_id, ingredient_id, lot_id, vessel_id,
		       vessel_code, ingredient_name, unit, status, status_detail, created_at
		FROM dispatch_records
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent dispatches: %w", err)
	}
	defer rows.Close()

	var records []domain.DispatchRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.DispatchRecord
		var status string
		var createdAt sql.NullTime
		if err := rows.Scan(&rec.UniqueTransactionID, &rec.ActionID, &rec.IngredientID,
			&rec.LotID, &rec.VesselID, &rec.VesselCode, &rec.IngredientName, &rec.Unit,
			&status, &rec.StatusDetail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning dispatch record: %w", err)
		}
		rec.Status = domain.Status(status)
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatch records: %w", err)
	}

	return records, nil
}

// ==================== Response Cache ====================

// responseCache implements driven.ResponseCache.
type responseCache struct {
	store *Store
	ttl   time.Duration
}

var _ driven.ResponseCache = (*responseCache)(nil)

// Get retrieves a cached response body. Stale entries and entries
// holding meaningless bodies are purged and reported as not found.
func (c *responseCache) Get(ctx context.Context, cacheKey string) ([]byte, error) {
	var body string
	var createdAt time.Time
	err := c.store.db.QueryRowContext(ctx, `
		SELECT response_body, created_at FROM response_cache WHERE cache_key = ?
	`, cacheKey).Scan(&body, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying response cache: %w", err)
	}

	if time.Since(createdAt) > c.ttl || meaninglessBody([]byte(body)) {
		if err := c.Invalidate(ctx, cacheKey); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}

	return []byte(body), nil
}

// Put stores a response body under a key. Meaningless bodies are
// refused: an empty list from an eventually consistent endpoint must
// not suppress a later successful fetch. A single-element JSON array
// is unwrapped before storage so lookups that return one match cache
// the match itself. An existing entry for the key is left untouched.
func (c *responseCache) Put(ctx context.Context, cacheKey string, body []byte) error {
	if meaninglessBody(body) {
		return fmt.Errorf("refusing to cache empty response: %w", domain.ErrInvalidInput)
	}

	body = unwrapSingle(body)

	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, response_body, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO NOTHING
	`, cacheKey, string(body), time.Now().UTC())

	if err != nil {
		return fmt.Errorf("caching response: %w", err)
	}
	return nil
}

// Invalidate removes a cache entry.
func (c *responseCache) Invalidate(ctx context.Context, cacheKey string) error {
	_, err := c.store.db.ExecContext(ctx, "DELETE FROM response_cache WHERE cache_key = ?", cacheKey)
	if err != nil {
		return fmt.Errorf("invalidating cache entry: %w", err)
	}
	return nil
}

// meaninglessBody reports whether a response body carries no usable
// payload: blank, a JSON null, or an empty JSON list.
func meaninglessBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "[]":
		return true
	}
	return false
}

// unwrapSingle replaces a one-element JSON array with its element.
func unwrapSingle(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return body
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return body
	}
	if len(elems) == 1 {
		return []byte(elems[0])
	}
	return body
}
