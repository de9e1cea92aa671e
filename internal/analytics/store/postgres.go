package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/throttle/internal/analytics"
)

const schema = `
	CREATE TABLE IF NOT EXISTS client_throttled_events (
		id                  BIGSERIAL PRIMARY KEY,
		client_key          TEXT NOT NULL,
		method              TEXT NOT NULL,
		path                TEXT NOT NULL,
		request_limit       INTEGER NOT NULL,
		retry_after_seconds DOUBLE PRECISION NOT NULL,
		occurred_at         TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS client_throttled_events_client_key_idx
		ON client_throttled_events (client_key, occurred_at);
	CREATE TABLE IF NOT EXISTS clients_evicted_events (
		id              BIGSERIAL PRIMARY KEY,
		evicted         INTEGER NOT NULL,
		tracked_clients INTEGER NOT NULL,
		swept_at        TIMESTAMPTZ NOT NULL
	);
`

// Postgres is a PostgreSQL implementation of analytics.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ analytics.Store = (*Postgres)(nil)

// NewPostgres creates a new PostgreSQL-backed analytics store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the event tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create analytics schema: %w", err)
	}

	return nil
}

func (p *Postgres) SaveClientThrottled(ctx context.Context, event *analytics.ClientThrottledEvent) error {
	query := `
		INSERT INTO client_throttled_events
			(client_key, method, path, request_limit, retry_after_seconds, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := p.pool.Exec(ctx, query,
		event.ClientKey,
		event.Method,
		event.Path,
		event.Limit,
		event.RetryAfterSeconds,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert throttled event: %w", err)
	}

	return nil
}

func (p *Postgres) SaveClientsEvicted(ctx context.Context, event *analytics.ClientsEvictedEvent) error {
	query := `
		INSERT INTO clients_evicted_events (evicted, tracked_clients, swept_at)
		VALUES ($1, $2, $3)
	`

	if _, err := p.pool.Exec(ctx, query, event.Evicted, event.TrackedClients, event.SweptAt); err != nil {
		return fmt.Errorf("insert evicted event: %w", err)
	}

	return nil
}
