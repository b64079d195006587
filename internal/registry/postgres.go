package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS podcast_jobs (
	id         TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresRegistry is the alternative durable backend. Expiry is enforced
// on read; truly removing expired rows is left to Sweep, which callers may
// run periodically.
type PostgresRegistry struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgresRegistry(ctx context.Context, pool *pgxpool.Pool, ttl time.Duration) (*PostgresRegistry, error) {
	if _, err := pool.Exec(ctx, jobsSchema); err != nil {
		return nil, fmt.Errorf("ensure jobs table: %w", err)
	}
	return &PostgresRegistry{pool: pool, ttl: ttl}, nil
}

func (r *PostgresRegistry) Put(ctx context.Context, id string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO podcast_jobs (id, record, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (id) DO UPDATE SET record = $2, expires_at = now() + $3`,
		id, data, r.ttl)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *PostgresRegistry) Get(ctx context.Context, id string) (Record, bool, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `
		SELECT record FROM podcast_jobs
		WHERE id = $1 AND expires_at > now()`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, true, nil
}

// Sweep deletes expired rows and returns how many were removed.
func (r *PostgresRegistry) Sweep(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM podcast_jobs WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep expired jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRegistry) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
