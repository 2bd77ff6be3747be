package tourstore

import (
	"context"
	"time"

	"github.com/openhouse-labs/tour-scheduling-api/internal/domain"
)

// DayKeyFormat is the layout of the UTC calendar-day bucket used by rate limiting.
const DayKeyFormat = "2006-01-02"

// DayKey returns the UTC calendar-day bucket for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyFormat)
}

// RateLimitCounter tracks successful bookings per (customer, UTC calendar day).
// Count only increases within a day; counters for past days are purged
// opportunistically by CleanupRateLimits.
type RateLimitCounter struct {
	CustomerID domain.CustomerID
	Day        string // DayKeyFormat
	Count      int
}

// IdempotencyRecord binds a caller-supplied idempotency key to the outcome of
// the create call that first used it. A record's fingerprint never changes after
// first write, and an expired record is treated as absent on read.
type IdempotencyRecord struct {
	Key         string
	TourID      domain.TourID
	Fingerprint string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Tx is the store surface available while holding exclusive access.
//
// All reads return snapshots: callers mutate a copy and save it back, never a
// live handle into the store.
type Tx interface {
	GetTour(ctx context.Context, id domain.TourID) (domain.Tour, bool, error)
	SaveTour(ctx context.Context, t domain.Tour) error
	ListTours(ctx context.Context) ([]domain.Tour, error)

	GetRateLimit(ctx context.Context, customerID domain.CustomerID, day string) (RateLimitCounter, bool, error)
	UpsertRateLimit(ctx context.Context, c RateLimitCounter) error

	// GetIdempotencyRecord treats records with ExpiresAt <= now as absent and may
	// purge them. Expiry is a read-side check, not a background sweep.
	GetIdempotencyRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	SaveIdempotencyRecord(ctx context.Context, rec IdempotencyRecord) error

	// CleanupRateLimits drops counters whose day is strictly before now's UTC day.
	// Best-effort housekeeping: correctness never depends on it running.
	CleanupRateLimits(ctx context.Context, now time.Time) error
}

// Store guards tours, idempotency records and rate-limit counters behind a
// single exclusive section.
//
// Mutating flows wrap their entire read-check-write sequence in
// WithExclusiveAccess so partial state of an in-progress operation is never
// observable. The read helpers are individually atomic and safe to call
// without entering an exclusive section.
type Store interface {
	// WithExclusiveAccess runs fn while no other exclusive section over the same
	// store can interleave. Callers perform all checks before any write so a
	// failed fn leaves no partial state behind.
	WithExclusiveAccess(ctx context.Context, fn func(tx Tx) error) error

	GetTour(ctx context.Context, id domain.TourID) (domain.Tour, bool, error)
	ListTours(ctx context.Context) ([]domain.Tour, error)
}
