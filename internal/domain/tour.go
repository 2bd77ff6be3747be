package domain

import "time"

type TourStatus string

const (
	TourStatusBooked    TourStatus = "BOOKED"
	TourStatusCancelled TourStatus = "CANCELLED"
)

// Tour is a scheduled property viewing. StartAt and EndAt are UTC instants and
// the tour occupies the half-open interval [StartAt, EndAt).
//
// A tour is created by the booking engine's create operation and mutated only by
// cancel; once CANCELLED it never reverts to BOOKED and is never physically deleted.
type Tour struct {
	ID         TourID
	PropertyID PropertyID
	CustomerID CustomerID
	StartAt    time.Time
	EndAt      time.Time
	Status     TourStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Overlaps reports whether the half-open intervals [startA, endA) and
// [startB, endB) intersect. Touching endpoints do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}
