// Package database provides per-test PostgreSQL document stores backed
// by an isolated schema each, with migrations applied.
package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/pkg/database"
	"github.com/taskmesh/taskmesh/pkg/store"
	"github.com/taskmesh/taskmesh/test/util"
)

// NewTestStore returns a PostgresStore over a fresh schema with all
// migrations applied. The schema and pool are torn down with the test.
func NewTestStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	pool := NewTestPool(t)
	return store.NewPostgresStore(pool)
}

// NewTestPool creates a pgx pool scoped to an isolated test schema and
// runs the document store migrations in it.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	connStr := util.CreateTestSchema(t)
	require.NoError(t, database.RunMigrations(connStr))

	cfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	cfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)
	return pool
}
