//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tradegate/internal/platform/config"
	"tradegate/internal/platform/postgres"
	auditpg "tradegate/pkg/platform/audit/store/postgres"
	"tradegate/pkg/testutil/containers"
)

func TestApplySchemaIsIdempotent(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	pool, err := postgres.New(ctx, config.PostgresConfig{URL: pg.DSN, MaxConns: 4})
	require.NoError(t, err)
	defer pool.Close()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = postgres.ApplySchema(ctx, pool, auditpg.Schema)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM information_schema.tables WHERE table_name IN ('audit_events', 'outbox')`).Scan(&n))
	require.Equal(t, 2, n)
}

func TestNewWithoutURL(t *testing.T) {
	pool, err := postgres.New(context.Background(), config.PostgresConfig{})
	require.NoError(t, err)
	require.Nil(t, pool)
}
