package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
)

// schemaLockID is an arbitrary, stable key for pg_advisory_xact_lock so
// concurrent instances bootstrapping the schema at startup serialize
// instead of racing on CREATE TABLE.
const schemaLockID int64 = 847_291_003

// CacheRepository is C12's insight cache, backed by Postgres. Bundles are
// stored as JSONB so the schema never needs to change shape with the
// insight bundle's fields. It talks to Postgres through database/sql with
// the pgx stdlib driver rather than pgx's native pool, which is what makes
// it testable against go-sqlmock.
type CacheRepository struct {
	db *sql.DB
}

func New(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// EnsureSchema creates the insight_cache table under an advisory lock, so
// multiple instances booting concurrently never race on DDL.
func (r *CacheRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema bootstrap tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("acquire schema advisory lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS insight_cache (
    cache_key  TEXT PRIMARY KEY,
    bundle     JSONB NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
)`); err != nil {
		return fmt.Errorf("create insight_cache table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS insight_cache_expires_at_idx ON insight_cache (expires_at)
`); err != nil {
		return fmt.Errorf("create insight_cache index: %w", err)
	}

	return tx.Commit()
}

// Get implements ports.InsightCache. A miss (no row, or an expired row)
// returns (nil, nil) — the use case treats that as "compute fresh".
func (r *CacheRepository) Get(ctx context.Context, cacheKey string) (*domain.CacheEntry, error) {
	var bundleJSON []byte
	var entry domain.CacheEntry

	row := r.db.QueryRowContext(ctx, `
SELECT bundle, expires_at FROM insight_cache
WHERE cache_key = $1 AND expires_at > now()`, cacheKey)

	if err := row.Scan(&bundleJSON, &entry.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrCacheError, "cache_get", err)
	}

	if err := json.Unmarshal(bundleJSON, &entry.Bundle); err != nil {
		return nil, domain.WrapError(domain.ErrCacheError, "cache_get", err)
	}
	entry.CacheKey = cacheKey
	return &entry, nil
}

// Put implements ports.InsightCache with an upsert, so a re-computed bundle
// for the same key simply extends the TTL rather than erroring.
func (r *CacheRepository) Put(ctx context.Context, entry domain.CacheEntry) error {
	bundleJSON, err := json.Marshal(entry.Bundle)
	if err != nil {
		return domain.WrapError(domain.ErrCacheError, "cache_put", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO insight_cache (cache_key, bundle, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (cache_key) DO UPDATE SET bundle = $2, expires_at = $3`,
		entry.CacheKey, bundleJSON, entry.ExpiresAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrCacheError, "cache_put", err)
	}
	return nil
}
