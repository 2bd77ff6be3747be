package tours

import (
	"time"

	"github.com/openhouse-labs/tour-scheduling-api/internal/domain"
)

type CreateTourInput struct {
	PropertyID domain.PropertyID
	CustomerID domain.CustomerID
	StartAt    time.Time
	EndAt      time.Time

	// IdempotencyKey is the caller-provided retry token; empty means none.
	IdempotencyKey string
}

type ListToursInput struct {
	// PropertyID filters by exact match when non-empty.
	PropertyID domain.PropertyID
	// Date keeps tours whose interval intersects [Date 00:00 UTC, Date+24h).
	Date *time.Time
	// Sort is the sort key, optionally prefixed with "-" for descending.
	// start_at is the only supported key.
	Sort     string
	Page     int
	PageSize int
}

type ListToursResult struct {
	Items []domain.Tour
	// Total is the filtered count before pagination.
	Total int
}
