package tourstore

import (
	"context"
	"sync"
	"time"

	"github.com/openhouse-labs/tour-scheduling-api/internal/domain"
	"github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/tourstore"
)

type rateKey struct {
	customer domain.CustomerID
	day      string
}

// Store is an in-memory implementation of tourstore.Store.
// It is safe for concurrent use.
//
// One mutex guards all three maps so an exclusive section observes and
// publishes a consistent view across tours, idempotency records and rate-limit
// counters.
type Store struct {
	mu          sync.Mutex
	tours       map[domain.TourID]domain.Tour
	idempotency map[string]tourstore.IdempotencyRecord
	rateLimits  map[rateKey]tourstore.RateLimitCounter
}

func NewStore() *Store {
	return &Store{
		tours:       make(map[domain.TourID]domain.Tour),
		idempotency: make(map[string]tourstore.IdempotencyRecord),
		rateLimits:  make(map[rateKey]tourstore.RateLimitCounter),
	}
}

func (s *Store) WithExclusiveAccess(ctx context.Context, fn func(tx tourstore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&tx{s: s})
}

func (s *Store) GetTour(ctx context.Context, id domain.TourID) (domain.Tour, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{s: s}).GetTour(ctx, id)
}

func (s *Store) ListTours(ctx context.Context) ([]domain.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{s: s}).ListTours(ctx)
}

// tx operates on the store with the mutex already held.
type tx struct {
	s *Store
}

func (t *tx) GetTour(ctx context.Context, id domain.TourID) (domain.Tour, bool, error) {
	_ = ctx
	tour, ok := t.s.tours[id]
	return tour, ok, nil
}

func (t *tx) SaveTour(ctx context.Context, tour domain.Tour) error {
	_ = ctx
	t.s.tours[tour.ID] = tour
	return nil
}

func (t *tx) ListTours(ctx context.Context) ([]domain.Tour, error) {
	_ = ctx
	out := make([]domain.Tour, 0, len(t.s.tours))
	for _, tour := range t.s.tours {
		out = append(out, tour)
	}
	return out, nil
}

func (t *tx) GetRateLimit(ctx context.Context, customerID domain.CustomerID, day string) (tourstore.RateLimitCounter, bool, error) {
	_ = ctx
	c, ok := t.s.rateLimits[rateKey{customer: customerID, day: day}]
	return c, ok, nil
}

func (t *tx) UpsertRateLimit(ctx context.Context, c tourstore.RateLimitCounter) error {
	_ = ctx
	t.s.rateLimits[rateKey{customer: c.CustomerID, day: c.Day}] = c
	return nil
}

func (t *tx) GetIdempotencyRecord(ctx context.Context, key string, now time.Time) (tourstore.IdempotencyRecord, bool, error) {
	_ = ctx
	rec, ok := t.s.idempotency[key]
	if !ok {
		return tourstore.IdempotencyRecord{}, false, nil
	}
	if !rec.ExpiresAt.After(now) {
		delete(t.s.idempotency, key)
		return tourstore.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (t *tx) SaveIdempotencyRecord(ctx context.Context, rec tourstore.IdempotencyRecord) error {
	_ = ctx
	t.s.idempotency[rec.Key] = rec
	return nil
}

func (t *tx) CleanupRateLimits(ctx context.Context, now time.Time) error {
	_ = ctx
	threshold := tourstore.DayKey(now)
	for k := range t.s.rateLimits {
		if k.day < threshold {
			delete(t.s.rateLimits, k)
		}
	}
	return nil
}
