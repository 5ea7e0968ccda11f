package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type snapshotDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSnapshotCache persists snapshots in the kpi_snapshots table so they
// survive restarts when Redis is not configured.
type PostgresSnapshotCache struct {
	db  snapshotDB
	now func() time.Time
}

// NewPostgresSnapshotCache creates a cache backed by the pool.
func NewPostgresSnapshotCache(pool *pgxpool.Pool) *PostgresSnapshotCache {
	if pool == nil {
		panic("analytics: pgx pool required for snapshot cache")
	}
	return &PostgresSnapshotCache{db: pool, now: time.Now}
}

// NewPostgresSnapshotCacheWithDB allows injecting a mock database for testing.
func NewPostgresSnapshotCacheWithDB(db snapshotDB, now func() time.Time) *PostgresSnapshotCache {
	if now == nil {
		now = time.Now
	}
	return &PostgresSnapshotCache{db: db, now: now}
}

const loadSnapshotSQL = `SELECT payload FROM kpi_snapshots WHERE cache_key = $1 AND expires_at > $2`

const storeSnapshotSQL = `INSERT INTO kpi_snapshots (cache_key, payload, generated_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_key) DO UPDATE
SET payload = EXCLUDED.payload, generated_at = EXCLUDED.generated_at, expires_at = EXCLUDED.expires_at`

func (c *PostgresSnapshotCache) Load(ctx context.Context, key string) (*KPIs, error) {
	var payload []byte
	err := c.db.QueryRow(ctx, loadSnapshotSQL, key, c.now().UTC()).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotMiss
	}
	if err != nil {
		return nil, fmt.Errorf("analytics: load snapshot: %w", err)
	}
	var k KPIs
	if err := json.Unmarshal(payload, &k); err != nil {
		return nil, ErrSnapshotMiss
	}
	return &k, nil
}

func (c *PostgresSnapshotCache) Store(ctx context.Context, key string, kpis *KPIs, ttl time.Duration) error {
	payload, err := json.Marshal(kpis)
	if err != nil {
		return fmt.Errorf("analytics: marshal snapshot: %w", err)
	}
	now := c.now().UTC()
	if _, err := c.db.Exec(ctx, storeSnapshotSQL, key, payload, kpis.GeneratedAt, now.Add(ttl)); err != nil {
		return fmt.Errorf("analytics: store snapshot: %w", err)
	}
	return nil
}
