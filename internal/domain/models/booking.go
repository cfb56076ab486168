package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a customer's request for capacity on a trip.
type Booking struct {
	ID          int64         `json:"id"`
	Reference   string        `json:"booking_reference"`
	TripID      int64         `json:"trip_id"`
	CustomerID  int64         `json:"customer_id"`
	CargoSize   int64         `json:"cargo_size"`
	TotalPrice  float64       `json:"total_price"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingAccepted, BookingRejected},
	BookingAccepted: {BookingCancelled},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldsCapacity reports whether the booking currently owns a ledger reservation.
func (b Booking) HoldsCapacity() bool {
	return b.Status == BookingAccepted
}
