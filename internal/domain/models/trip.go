package models

import "time"

type TripStatus string

const (
	TripOpen     TripStatus = "open"
	TripClosed   TripStatus = "closed"
	TripDeparted TripStatus = "departed"
)

// Trip is an owner's published journey with a fixed cargo capacity.
// CommittedCapacity only moves through the capacity ledger.
type Trip struct {
	ID                int64      `json:"id"`
	OwnerID           int64      `json:"owner_id"`
	VehicleID         *int64     `json:"vehicle_id,omitempty"`
	StartLocation     string     `json:"start_location"`
	EndLocation       string     `json:"end_location"`
	StartAt           time.Time  `json:"start_datetime"`
	PricePerUnit      float64    `json:"price_per_unit"`
	Description       string     `json:"description,omitempty"`
	TotalCapacity     int64      `json:"total_capacity"`
	CommittedCapacity int64      `json:"committed_capacity"`
	Status            TripStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Available is the capacity that can still be reserved.
func (t Trip) Available() int64 {
	return t.TotalCapacity - t.CommittedCapacity
}

// Started reports whether the departure time is at or before now.
func (t Trip) Started(now time.Time) bool {
	return !now.Before(t.StartAt)
}

// Bookable reports whether customers may submit requests against the trip.
func (t Trip) Bookable(now time.Time) bool {
	return t.Status == TripOpen && !t.Started(now)
}

// TripFilter narrows trip searches. Zero values mean "no constraint".
type TripFilter struct {
	StartLocation string
	EndLocation   string
	MinAvailable  int64
	OwnerID       int64
	OnlyOpen      bool
	StartsAfter   time.Time
	Limit         int
	Offset        int
}
