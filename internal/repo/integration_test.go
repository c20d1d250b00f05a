package repo_test

import (
	"context"
	"os"
	"testing"

	"mebel-erp/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// testPool connects to DATABASE_URL and applies migrations.
// Tests using it are skipped when the variable is not set.
//
// Run with: DATABASE_URL=postgres://... go test -v ./internal/repo
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	require.NoError(t, database.RunMigrations(databaseURL), "failed to run migrations")

	pool, err := database.NewPool(context.Background(), databaseURL)
	require.NoError(t, err, "failed to connect to database")
	t.Cleanup(pool.Close)
	return pool
}
