package contracttest

import (
	"context"
	"testing"
	"time"

	"github.com/openhouse-labs/tour-scheduling-api/internal/domain"
	"github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/tourstore"
)

type CleanupFunc = func()

type TourStoreFactory func(t *testing.T) (tourstore.Store, CleanupFunc)

// RunTourStore exercises the tourstore.Store contract against any adapter.
func RunTourStore(t *testing.T, newStore TourStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	t.Run("tour round trip and snapshot semantics", func(t *testing.T) {
		tour := domain.Tour{
			ID:         "tour_aaa111",
			PropertyID: "prop-1",
			CustomerID: "cust-1",
			StartAt:    now,
			EndAt:      now.Add(30 * time.Minute),
			Status:     domain.TourStatusBooked,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
			return tx.SaveTour(ctx, tour)
		})
		if err != nil {
			t.Fatalf("SaveTour: %v", err)
		}

		got, ok, err := store.GetTour(ctx, "tour_aaa111")
		if err != nil || !ok {
			t.Fatalf("GetTour: ok=%v err=%v", ok, err)
		}
		if got.PropertyID != "prop-1" || got.Status != domain.TourStatusBooked {
			t.Fatalf("unexpected tour: %+v", got)
		}
		if !got.StartAt.Equal(tour.StartAt) || !got.EndAt.Equal(tour.EndAt) {
			t.Fatalf("interval mismatch: %+v", got)
		}

		// Mutating the copy must not leak back into the store.
		got.Status = domain.TourStatusCancelled
		again, _, err := store.GetTour(ctx, "tour_aaa111")
		if err != nil {
			t.Fatalf("GetTour: %v", err)
		}
		if again.Status != domain.TourStatusBooked {
			t.Fatalf("store handed out a live-mutable tour")
		}

		if _, ok, err := store.GetTour(ctx, "tour_missing"); err != nil || ok {
			t.Fatalf("expected absent tour, ok=%v err=%v", ok, err)
		}
	})

	t.Run("save overwrites by id", func(t *testing.T) {
		err := store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
			tour, ok, err := tx.GetTour(ctx, "tour_aaa111")
			if err != nil || !ok {
				t.Fatalf("GetTour in tx: ok=%v err=%v", ok, err)
			}
			tour.Status = domain.TourStatusCancelled
			tour.UpdatedAt = now.Add(time.Hour)
			return tx.SaveTour(ctx, tour)
		})
		if err != nil {
			t.Fatalf("overwrite: %v", err)
		}
		got, _, err := store.GetTour(ctx, "tour_aaa111")
		if err != nil {
			t.Fatalf("GetTour: %v", err)
		}
		if got.Status != domain.TourStatusCancelled || !got.UpdatedAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("overwrite not visible: %+v", got)
		}
	})

	t.Run("list returns all tours", func(t *testing.T) {
		second := domain.Tour{
			ID:         "tour_bbb222",
			PropertyID: "prop-2",
			CustomerID: "cust-1",
			StartAt:    now.Add(2 * time.Hour),
			EndAt:      now.Add(3 * time.Hour),
			Status:     domain.TourStatusBooked,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
			return tx.SaveTour(ctx, second)
		})
		if err != nil {
			t.Fatalf("SaveTour: %v", err)
		}
		all, err := store.ListTours(ctx)
		if err != nil {
			t.Fatalf("ListTours: %v", err)
		}
		ids := map[domain.TourID]bool{}
		for _, tour := range all {
			ids[tour.ID] = true
		}
		if !ids["tour_aaa111"] || !ids["tour_bbb222"] {
			t.Fatalf("missing tours in list: %v", ids)
		}
	})

	t.Run("rate limit counters", func(t *testing.T) {
		day := tourstore.DayKey(now)
		err := store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
			if _, ok, err := tx.GetRateLimit(ctx, "cust-rl", day); err != nil || ok {
				t.Fatalf("expected absent counter, ok=%v err=%v", ok, err)
			}
			c := tourstore.RateLimitCounter{CustomerID: "cust-rl", Day: day, Count: 1}
			if err := tx.UpsertRateLimit(ctx, c); err != nil {
				return err
			}
			c.Count = 2
			if err := tx.UpsertRateLimit(ctx, c); err != nil {
				return err
			}
			got, ok, err := tx.GetRateLimit(ctx, "cust-rl", day)
			if err != nil || !ok {
				t.Fatalf("GetRateLimit: ok=%v err=%v", ok, err)
			}
			if got.Count != 2 {
				t.Fatalf("count=%d", got.Count)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("rate limit tx: %v", err)
		}
	})

	t.Run("cleanup drops past days only", func(t *testing.T) {
		yesterday := tourstore.DayKey(now.Add(-24 * time.Hour))
		today := tourstore.DayKey(now)
		err := store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
			if err := tx.UpsertRateLimit(ctx, tourstore.RateLimitCounter{CustomerID: "cust-old", Day: yesterday, Count: 3}); err != nil {
				return err
			}
			if err := tx.CleanupRateLimits(ctx, now); err != nil {
				return err
			}
			if _, ok, err := tx.GetRateLimit(ctx, "cust-old", yesterday); err != nil || ok {
				t.Fatalf("expected past counter purged, ok=%v err=%v", ok, err)
			}
			if _, ok, err := tx.GetRateLimit(ctx, "cust-rl", today); err != nil || !ok {
				t.Fatalf("expected today's counter kept, ok=%v err=%v", ok, err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("cleanup tx: %v", err)
		}
	})

	t.Run("idempotency records expire on read", func(t *testing.T) {
		rec := tourstore.IdempotencyRecord{
			Key:         "key-1",
			TourID:      "tour_aaa111",
			Fingerprint: "prop-1|cust-1|a|b",
			CreatedAt:   now,
			ExpiresAt:   now.Add(24 * time.Hour),
		}
		err := store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
			if err := tx.SaveIdempotencyRecord(ctx, rec); err != nil {
				return err
			}
			got, ok, err := tx.GetIdempotencyRecord(ctx, "key-1", now)
			if err != nil || !ok {
				t.Fatalf("GetIdempotencyRecord: ok=%v err=%v", ok, err)
			}
			if got.Fingerprint != rec.Fingerprint || got.TourID != rec.TourID {
				t.Fatalf("unexpected record: %+v", got)
			}

			// At the expiry instant the record is treated as absent.
			if _, ok, err := tx.GetIdempotencyRecord(ctx, "key-1", now.Add(24*time.Hour)); err != nil || ok {
				t.Fatalf("expected expired record absent, ok=%v err=%v", ok, err)
			}
			// And the read purged it.
			if _, ok, err := tx.GetIdempotencyRecord(ctx, "key-1", now); err != nil || ok {
				t.Fatalf("expected purged record absent, ok=%v err=%v", ok, err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("idempotency tx: %v", err)
		}
	})
}
