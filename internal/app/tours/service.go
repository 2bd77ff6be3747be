package tours

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openhouse-labs/tour-scheduling-api/internal/domain"
	"github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/clock"
	"github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/tourstore"
)

const (
	// dailyCreateLimit is the hard cap of successful bookings per customer per
	// UTC calendar day.
	dailyCreateLimit = 3

	// idempotencyTTL is how long a create outcome can be replayed via its key.
	idempotencyTTL = 24 * time.Hour

	// sortStartAt is the only supported list sort key.
	sortStartAt = "start_at"
)

// Service is the booking engine. It owns every business invariant and is the
// sole writer of store state: create and cancel each wrap their whole
// read-check-write sequence in one exclusive section.
type Service struct {
	store tourstore.Store
	clock clock.Clock
	log   *slog.Logger

	newTourID func() domain.TourID
}

func NewService(store tourstore.Store, clk clock.Clock, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store: store,
		clock: clk,
		log:   log,
		newTourID: func() domain.TourID {
			id := uuid.New()
			return domain.TourID("tour_" + hex.EncodeToString(id[:6]))
		},
	}
}

// SetNewTourIDForTest overrides tour ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewTourIDForTest(fn func() domain.TourID) {
	if fn != nil {
		s.newTourID = fn
	}
}

// CreateTour books a tour after validating it against idempotent-replay
// history, the per-customer daily quota and overlap with existing bookings for
// the same property. The returned bool is false when an idempotent replay
// returned a previously created tour.
//
// Check ordering inside the exclusive section is deliberate: the idempotency
// short-circuit comes first so retries bypass quota and overlap entirely, and
// the quota check precedes the overlap scan. Failures happen before any write,
// so they leave no partial state.
func (s *Service) CreateTour(ctx context.Context, in CreateTourInput) (domain.Tour, bool, error) {
	startAt, err := ensureUTC(in.StartAt, "start_at")
	if err != nil {
		return domain.Tour{}, false, err
	}
	endAt, err := ensureUTC(in.EndAt, "end_at")
	if err != nil {
		return domain.Tour{}, false, err
	}
	if !startAt.Before(endAt) {
		return domain.Tour{}, false, badRequest("end_at must be after start_at", "end_at")
	}

	now := s.clock.Now().UTC()
	fp := fingerprint(in.PropertyID, in.CustomerID, startAt, endAt)

	var (
		tour    domain.Tour
		created bool
	)
	err = s.store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
		if in.IdempotencyKey != "" {
			rec, ok, err := tx.GetIdempotencyRecord(ctx, in.IdempotencyKey, now)
			if err != nil {
				return err
			}
			if ok {
				if rec.Fingerprint != fp {
					return conflict("idempotency key already used with different parameters")
				}
				existing, ok, err := tx.GetTour(ctx, rec.TourID)
				if err != nil {
					return err
				}
				if ok {
					tour = existing
					return nil
				}
			}
		}

		if err := tx.CleanupRateLimits(ctx, now); err != nil {
			return err
		}

		day := tourstore.DayKey(now)
		counter, ok, err := tx.GetRateLimit(ctx, in.CustomerID, day)
		if err != nil {
			return err
		}
		if !ok {
			counter = tourstore.RateLimitCounter{CustomerID: in.CustomerID, Day: day}
			if err := tx.UpsertRateLimit(ctx, counter); err != nil {
				return err
			}
		}
		if counter.Count >= dailyCreateLimit {
			return rateLimited("daily tour creation limit reached")
		}

		if err := ensureNoOverlap(ctx, tx, in.PropertyID, startAt, endAt); err != nil {
			return err
		}

		tour = domain.Tour{
			ID:         s.newTourID(),
			PropertyID: in.PropertyID,
			CustomerID: in.CustomerID,
			StartAt:    startAt,
			EndAt:      endAt,
			Status:     domain.TourStatusBooked,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.SaveTour(ctx, tour); err != nil {
			return err
		}

		counter.Count++
		if err := tx.UpsertRateLimit(ctx, counter); err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			rec := tourstore.IdempotencyRecord{
				Key:         in.IdempotencyKey,
				TourID:      tour.ID,
				Fingerprint: fp,
				CreatedAt:   now,
				ExpiresAt:   now.Add(idempotencyTTL),
			}
			if err := tx.SaveIdempotencyRecord(ctx, rec); err != nil {
				return err
			}
		}

		created = true
		return nil
	})
	if err != nil {
		return domain.Tour{}, false, err
	}

	if created {
		s.log.Info("tour created",
			"tour_id", string(tour.ID),
			"property_id", string(tour.PropertyID),
			"customer_id", string(tour.CustomerID),
		)
	}
	return tour, created, nil
}

func (s *Service) GetTour(ctx context.Context, id domain.TourID) (domain.Tour, error) {
	tour, ok, err := s.store.GetTour(ctx, id)
	if err != nil {
		return domain.Tour{}, err
	}
	if !ok {
		return domain.Tour{}, notFound("tour not found")
	}
	return tour, nil
}

func (s *Service) ListTours(ctx context.Context, in ListToursInput) (ListToursResult, error) {
	sortField := in.Sort
	desc := false
	if strings.HasPrefix(sortField, "-") {
		desc = true
		sortField = sortField[1:]
	}
	if sortField != sortStartAt {
		return ListToursResult{}, badRequest("unsupported sort field", "sort")
	}

	all, err := s.store.ListTours(ctx)
	if err != nil {
		return ListToursResult{}, err
	}

	filtered := make([]domain.Tour, 0, len(all))
	for _, t := range all {
		if matchesFilters(t, in.PropertyID, in.Date) {
			filtered = append(filtered, t)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if desc {
			a, b = b, a
		}
		if !a.StartAt.Equal(b.StartAt) {
			return a.StartAt.Before(b.StartAt)
		}
		// Tie-breaker keeps ordering deterministic across calls.
		return string(a.ID) < string(b.ID)
	})

	total := len(filtered)
	start := (in.Page - 1) * in.PageSize
	if start > total {
		start = total
	}
	end := start + in.PageSize
	if end > total {
		end = total
	}
	return ListToursResult{Items: filtered[start:end], Total: total}, nil
}

// CancelTour transitions a tour to CANCELLED. Cancelling an already cancelled
// tour is a no-op, not an error; UpdatedAt is refreshed only on an actual
// transition.
func (s *Service) CancelTour(ctx context.Context, id domain.TourID) error {
	var (
		tour         domain.Tour
		transitioned bool
	)
	err := s.store.WithExclusiveAccess(ctx, func(tx tourstore.Tx) error {
		existing, ok, err := tx.GetTour(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("tour not found")
		}
		if existing.Status == domain.TourStatusCancelled {
			return nil
		}
		existing.Status = domain.TourStatusCancelled
		existing.UpdatedAt = s.clock.Now().UTC()
		if err := tx.SaveTour(ctx, existing); err != nil {
			return err
		}
		tour = existing
		transitioned = true
		return nil
	})
	if err != nil {
		return err
	}

	if transitioned {
		s.log.Info("tour cancelled",
			"tour_id", string(tour.ID),
			"property_id", string(tour.PropertyID),
			"customer_id", string(tour.CustomerID),
		)
	}
	return nil
}

// ensureUTC rejects timestamps the transport could not attribute a timezone to
// (decoded as the zero value) and normalizes the rest to UTC.
func ensureUTC(t time.Time, field string) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, badRequest("timestamp must be timezone-aware", field)
	}
	return t.UTC(), nil
}

func ensureNoOverlap(ctx context.Context, tx tourstore.Tx, propertyID domain.PropertyID, startAt, endAt time.Time) error {
	all, err := tx.ListTours(ctx)
	if err != nil {
		return err
	}
	for _, t := range all {
		if t.PropertyID != propertyID {
			continue
		}
		if t.Status != domain.TourStatusBooked {
			continue
		}
		if domain.Overlaps(t.StartAt, t.EndAt, startAt, endAt) {
			return conflict("overlapping tour for property")
		}
	}
	return nil
}

func matchesFilters(t domain.Tour, propertyID domain.PropertyID, date *time.Time) bool {
	if propertyID != "" && t.PropertyID != propertyID {
		return false
	}
	if date != nil {
		dayStart := date.UTC().Truncate(24 * time.Hour)
		dayEnd := dayStart.Add(24 * time.Hour)
		if !domain.Overlaps(t.StartAt, t.EndAt, dayStart, dayEnd) {
			return false
		}
	}
	return true
}

// fingerprint is the deterministic digest of a create request's logical
// parameters, used to detect idempotency-key reuse with differing intent.
func fingerprint(propertyID domain.PropertyID, customerID domain.CustomerID, startAt, endAt time.Time) string {
	return strings.Join([]string{
		string(propertyID),
		string(customerID),
		startAt.Format(time.RFC3339Nano),
		endAt.Format(time.RFC3339Nano),
	}, "|")
}
