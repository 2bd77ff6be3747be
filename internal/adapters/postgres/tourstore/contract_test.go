package tourstore

import (
	"context"
	"testing"

	"github.com/openhouse-labs/tour-scheduling-api/internal/adapters/contracttest"
	"github.com/openhouse-labs/tour-scheduling-api/internal/adapters/postgres/testutil"
	tourstoreport "github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/tourstore"
)

func TestContract_PostgresTourStore(t *testing.T) {
	pool := testutil.OpenPool(t)

	contracttest.RunTourStore(t, func(t *testing.T) (tourstoreport.Store, func()) {
		t.Helper()
		ctx := context.Background()

		store := NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema: %v", err)
		}
		if _, err := pool.Exec(ctx, `TRUNCATE tours, tour_idempotency_keys, tour_rate_limits`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store, nil
	})
}
