// Package postgres opens the pgx pool backing the audit store.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradegate/internal/platform/config"
)

// advisoryLockID serializes schema application across replicas.
const advisoryLockID int64 = 720451183

// New opens and pings a pool. Returns nil if the URL is empty.
func New(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// ApplySchema runs idempotent DDL statements under an advisory lock.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool, ddl ...string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockID)
	}()

	for i, stmt := range ddl {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema %d: %w", i, err)
		}
	}
	return nil
}
