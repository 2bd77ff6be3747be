package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/openhouse-labs/tour-scheduling-api/internal/adapters/postgres"
)

// OpenPool connects to the database named by TEST_DATABASE_URL, skipping the
// test when the variable is unset.
func OpenPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres adapter tests")
	}
	pool, err := postgres.NewPool(context.Background(), dsn, postgres.PoolOptions{})
	if err != nil {
		t.Fatalf("open postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
