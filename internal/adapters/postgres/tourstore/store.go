package tourstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openhouse-labs/tour-scheduling-api/internal/domain"
	"github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/tourstore"
)

// exclusiveLockID is the advisory lock key serializing all tour-mutating
// transactions. One coarse lock mirrors the single exclusive section the
// booking engine requires.
const exclusiveLockID = int64(0x746f7572) // "tour"

// Store is a Postgres implementation of tourstore.Store.
//
// WithExclusiveAccess runs its callback inside a transaction holding
// pg_advisory_xact_lock, so exclusive sections are mutually exclusive across
// connections and a failed callback rolls every write back.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the backing tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tours (
			id TEXT PRIMARY KEY,
			property_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			start_at TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tour_idempotency_keys (
			key TEXT PRIMARY KEY,
			tour_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tour_rate_limits (
			customer_id TEXT NOT NULL,
			day TEXT NOT NULL,
			count INT NOT NULL,
			PRIMARY KEY (customer_id, day)
		);
	`)
	return err
}

func (s *Store) WithExclusiveAccess(ctx context.Context, fn func(tx tourstore.Tx) error) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	return pgx.BeginFunc(ctx, s.pool, func(ptx pgx.Tx) error {
		if _, err := ptx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, exclusiveLockID); err != nil {
			return err
		}
		return fn(&tx{q: ptx})
	})
}

func (s *Store) GetTour(ctx context.Context, id domain.TourID) (domain.Tour, bool, error) {
	if s.pool == nil {
		return domain.Tour{}, false, errors.New("nil postgres pool")
	}
	return (&tx{q: s.pool}).GetTour(ctx, id)
}

func (s *Store) ListTours(ctx context.Context) ([]domain.Tour, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	return (&tx{q: s.pool}).ListTours(ctx)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type tx struct {
	q querier
}

func (t *tx) GetTour(ctx context.Context, id domain.TourID) (domain.Tour, bool, error) {
	row := t.q.QueryRow(ctx, `
		SELECT id, property_id, customer_id, start_at, end_at, status, created_at, updated_at
		FROM tours
		WHERE id = $1
	`, string(id))
	tour, err := scanTour(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tour{}, false, nil
		}
		return domain.Tour{}, false, err
	}
	return tour, true, nil
}

func (t *tx) SaveTour(ctx context.Context, tour domain.Tour) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO tours (id, property_id, customer_id, start_at, end_at, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			customer_id = EXCLUDED.customer_id,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`,
		string(tour.ID),
		string(tour.PropertyID),
		string(tour.CustomerID),
		tour.StartAt.UTC(),
		tour.EndAt.UTC(),
		string(tour.Status),
		tour.CreatedAt.UTC(),
		tour.UpdatedAt.UTC(),
	)
	return err
}

func (t *tx) ListTours(ctx context.Context) ([]domain.Tour, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, property_id, customer_id, start_at, end_at, status, created_at, updated_at
		FROM tours
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Tour, 0)
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tour)
	}
	return out, rows.Err()
}

func (t *tx) GetRateLimit(ctx context.Context, customerID domain.CustomerID, day string) (tourstore.RateLimitCounter, bool, error) {
	row := t.q.QueryRow(ctx, `
		SELECT customer_id, day, count
		FROM tour_rate_limits
		WHERE customer_id = $1 AND day = $2
	`, string(customerID), day)

	var c tourstore.RateLimitCounter
	if err := row.Scan(&c.CustomerID, &c.Day, &c.Count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tourstore.RateLimitCounter{}, false, nil
		}
		return tourstore.RateLimitCounter{}, false, err
	}
	return c, true, nil
}

func (t *tx) UpsertRateLimit(ctx context.Context, c tourstore.RateLimitCounter) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO tour_rate_limits (customer_id, day, count)
		VALUES ($1,$2,$3)
		ON CONFLICT (customer_id, day) DO UPDATE SET count = EXCLUDED.count
	`, string(c.CustomerID), c.Day, c.Count)
	return err
}

func (t *tx) GetIdempotencyRecord(ctx context.Context, key string, now time.Time) (tourstore.IdempotencyRecord, bool, error) {
	// Read-side expiry: purge the record when it is past its expiry.
	if _, err := t.q.Exec(ctx, `
		DELETE FROM tour_idempotency_keys
		WHERE key = $1 AND expires_at <= $2
	`, key, now.UTC()); err != nil {
		return tourstore.IdempotencyRecord{}, false, err
	}

	row := t.q.QueryRow(ctx, `
		SELECT key, tour_id, fingerprint, created_at, expires_at
		FROM tour_idempotency_keys
		WHERE key = $1
	`, key)

	var rec tourstore.IdempotencyRecord
	if err := row.Scan(&rec.Key, &rec.TourID, &rec.Fingerprint, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tourstore.IdempotencyRecord{}, false, nil
		}
		return tourstore.IdempotencyRecord{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return rec, true, nil
}

func (t *tx) SaveIdempotencyRecord(ctx context.Context, rec tourstore.IdempotencyRecord) error {
	// Records are immutable after first write.
	_, err := t.q.Exec(ctx, `
		INSERT INTO tour_idempotency_keys (key, tour_id, fingerprint, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (key) DO NOTHING
	`, rec.Key, string(rec.TourID), rec.Fingerprint, rec.CreatedAt.UTC(), rec.ExpiresAt.UTC())
	return err
}

func (t *tx) CleanupRateLimits(ctx context.Context, now time.Time) error {
	_, err := t.q.Exec(ctx, `
		DELETE FROM tour_rate_limits
		WHERE day < $1
	`, tourstore.DayKey(now))
	return err
}

func scanTour(row pgx.Row) (domain.Tour, error) {
	var tour domain.Tour
	if err := row.Scan(
		&tour.ID,
		&tour.PropertyID,
		&tour.CustomerID,
		&tour.StartAt,
		&tour.EndAt,
		&tour.Status,
		&tour.CreatedAt,
		&tour.UpdatedAt,
	); err != nil {
		return domain.Tour{}, err
	}
	tour.StartAt = tour.StartAt.UTC()
	tour.EndAt = tour.EndAt.UTC()
	tour.CreatedAt = tour.CreatedAt.UTC()
	tour.UpdatedAt = tour.UpdatedAt.UTC()
	return tour, nil
}
