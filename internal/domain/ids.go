package domain

// PropertyID identifies a listed property. We model it as an opaque identifier:
// its format is controlled by the listings system.
type PropertyID string

// CustomerID identifies the customer requesting a tour.
type CustomerID string

// TourID is an internal identifier for a tour record.
type TourID string
