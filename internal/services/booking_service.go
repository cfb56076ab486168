package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/ledger"
	"loadmatch/internal/notify"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

// BookingService drives the booking lifecycle. Every transition runs inside the trip's
// ledger guard and one store transaction together with its notification.
type BookingService struct {
	Store        repositories.Store
	Ledger       *ledger.Ledger
	Notify       notify.Dispatcher
	CancelCutoff time.Duration
	Now          func() time.Time
}

type CreateBookingInput struct {
	TripID     int64    `json:"trip_id"`
	CargoSize  int64    `json:"cargo_size"`
	TotalPrice *float64 `json:"total_price"`
}

func (s BookingService) now() time.Time { return clock(s.Now).now() }

// Create submits a pending request. No capacity is committed.
func (s BookingService) Create(ctx context.Context, sub policy.Subject, in CreateBookingInput) (models.Booking, error) {
	if in.TripID <= 0 {
		return models.Booking{}, domain.ValidationError{Field: "trip_id", Msg: "required"}
	}

	var (
		b   models.Booking
		out notify.Outbox
	)
	err := s.Store.WithTx(ctx, func(tx repositories.Repos) error {
		trip, err := tx.Trips().GetByID(ctx, in.TripID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := policy.Authorize(sub, policy.CreateBooking, policy.ForTrip(trip, now)); err != nil {
			return err
		}
		if in.CargoSize <= 0 {
			return domain.ValidationError{Field: "cargo_size", Msg: "must be greater than 0"}
		}
		price := float64(in.CargoSize) * trip.PricePerUnit
		if in.TotalPrice != nil {
			price = *in.TotalPrice
		}
		price = utils.RoundMoney(price)
		if price <= 0 {
			return domain.ValidationError{Field: "total_price", Msg: "must be greater than 0"}
		}

		b = models.Booking{
			Reference:  newBookingReference(),
			TripID:     trip.ID,
			CustomerID: sub.UserID,
			CargoSize:  in.CargoSize,
			TotalPrice: price,
			Status:     models.BookingPending,
			CreatedAt:  now,
		}
		if err := tx.Bookings().Create(ctx, &b); err != nil {
			return err
		}
		msg := fmt.Sprintf("New booking request %s for %d units on your trip from %s to %s.",
			b.Reference, b.CargoSize, trip.StartLocation, trip.EndLocation)
		_, err = s.Notify.Publish(ctx, tx.Notifications(), &out, trip.OwnerID, models.KindBookingRequested, msg, &b.ID)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}
	s.Notify.Flush(ctx, &out)
	utils.LogEvent(ctx, "booking", "create", "booking requested",
		"booking_id", b.ID, "trip_id", b.TripID, "customer_id", b.CustomerID, "cargo_size", b.CargoSize)
	return b, nil
}

// Accept reserves the booking's cargo on the trip. On InsufficientCapacity the booking
// stays pending and nothing is written.
func (s BookingService) Accept(ctx context.Context, sub policy.Subject, bookingID int64) (models.Booking, error) {
	return s.transition(ctx, sub, bookingID, models.BookingAccepted)
}

func (s BookingService) Reject(ctx context.Context, sub policy.Subject, bookingID int64) (models.Booking, error) {
	return s.transition(ctx, sub, bookingID, models.BookingRejected)
}

// Cancel releases an accepted booking. Either party may cancel until CancelCutoff before
// the start of the trip.
func (s BookingService) Cancel(ctx context.Context, sub policy.Subject, bookingID int64) (models.Booking, error) {
	return s.transition(ctx, sub, bookingID, models.BookingCancelled)
}

// Decide maps the legacy status update onto Accept or Reject.
func (s BookingService) Decide(ctx context.Context, sub policy.Subject, bookingID int64, status string) (models.Booking, error) {
	switch models.BookingStatus(strings.ToLower(strings.TrimSpace(status))) {
	case models.BookingAccepted:
		return s.Accept(ctx, sub, bookingID)
	case models.BookingRejected:
		return s.Reject(ctx, sub, bookingID)
	default:
		return models.Booking{}, domain.ValidationError{Field: "status", Msg: "must be accepted or rejected"}
	}
}

func (s BookingService) transition(ctx context.Context, sub policy.Subject, bookingID int64, to models.BookingStatus) (models.Booking, error) {
	// trip_id never changes, so it is safe to read it before taking the guard
	current, err := s.Store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, concealMissing(sub, capabilityFor(to), err)
	}

	var (
		b   models.Booking
		out notify.Outbox
	)
	err = s.Ledger.Guard(current.TripID, func() error {
		return s.Store.WithTx(ctx, func(tx repositories.Repos) error {
			trip, err := tx.Trips().GetForUpdate(ctx, current.TripID)
			if err != nil {
				return err
			}
			b, err = tx.Bookings().GetByID(ctx, bookingID)
			if err != nil {
				return err
			}
			now := s.now()
			if err := policy.Authorize(sub, capabilityFor(to), policy.ForBooking(b, trip, now)); err != nil {
				return err
			}
			if !models.CanTransition(b.Status, to) {
				return domain.InvalidStateError{Resource: "booking", State: string(b.Status), Action: verbFor(to)}
			}

			var drafts []notify.Draft
			recipient := b.CustomerID
			switch to {
			case models.BookingAccepted:
				if trip.Status == models.TripDeparted || trip.Started(now) {
					return domain.InvalidStateError{Resource: "trip", State: string(trip.Status), Action: "accept bookings on started"}
				}
				after, err := s.Ledger.Reserve(ctx, tx.Trips(), trip.ID, b.CargoSize)
				if err != nil {
					return err
				}
				if trip.Status == models.TripOpen && after.Status == models.TripClosed {
					drafts = append(drafts, tripDraft(after, models.KindTripFull,
						fmt.Sprintf("Your trip from %s to %s is fully booked and closed to new requests.", after.StartLocation, after.EndLocation)))
				}
				b.DecidedAt = &now
			case models.BookingRejected:
				b.DecidedAt = &now
			case models.BookingCancelled:
				if trip.Status == models.TripDeparted {
					return domain.InvalidStateError{Resource: "trip", State: string(trip.Status), Action: "cancel bookings on"}
				}
				if !now.Before(trip.StartAt.Add(-s.CancelCutoff)) {
					return domain.InvalidStateError{Resource: "booking", State: "cancellation window closed", Action: "cancel"}
				}
				after, err := s.Ledger.Release(ctx, tx.Trips(), trip.ID, b.CargoSize)
				if err != nil {
					return err
				}
				if trip.Status == models.TripClosed && after.Status == models.TripOpen {
					drafts = append(drafts, tripDraft(after, models.KindTripReopened,
						fmt.Sprintf("Your trip from %s to %s has %d units free again and is open for requests.",
							after.StartLocation, after.EndLocation, after.Available())))
				}
				b.CancelledAt = &now
				if sub.UserID == b.CustomerID {
					recipient = trip.OwnerID
				}
			}

			b.Status = to
			if err := tx.Bookings().UpdateState(ctx, b); err != nil {
				return err
			}
			drafts = append(drafts, notify.Draft{UserID: recipient, Kind: kindFor(to), Message: messageFor(b, trip), RelatedBookingID: &b.ID})
			return s.Notify.PublishBatch(ctx, tx.Notifications(), &out, drafts)
		})
	})
	if err != nil {
		return models.Booking{}, err
	}
	s.Notify.Flush(ctx, &out)
	utils.LogEvent(ctx, "booking", verbFor(to), "booking "+string(to),
		"booking_id", b.ID, "trip_id", b.TripID, "actor_id", sub.UserID)
	return b, nil
}

func capabilityFor(to models.BookingStatus) policy.Capability {
	if to == models.BookingCancelled {
		return policy.CancelBooking
	}
	return policy.DecideBooking
}

func verbFor(to models.BookingStatus) string {
	switch to {
	case models.BookingAccepted:
		return "accept"
	case models.BookingRejected:
		return "reject"
	default:
		return "cancel"
	}
}

func kindFor(to models.BookingStatus) string {
	switch to {
	case models.BookingAccepted:
		return models.KindBookingAccepted
	case models.BookingRejected:
		return models.KindBookingRejected
	default:
		return models.KindBookingCancelled
	}
}

func messageFor(b models.Booking, trip models.Trip) string {
	route := fmt.Sprintf("%s to %s on %s", trip.StartLocation, trip.EndLocation, trip.StartAt.Format("2006-01-02 15:04"))
	switch b.Status {
	case models.BookingAccepted:
		return fmt.Sprintf("Your booking %s for %d units (%s) was accepted.", b.Reference, b.CargoSize, route)
	case models.BookingRejected:
		return fmt.Sprintf("Your booking %s for %d units (%s) was rejected.", b.Reference, b.CargoSize, route)
	default:
		return fmt.Sprintf("Booking %s for %d units (%s) was cancelled.", b.Reference, b.CargoSize, route)
	}
}

// Get returns one booking visible to the caller.
func (s BookingService) Get(ctx context.Context, sub policy.Subject, bookingID int64) (models.Booking, error) {
	b, err := s.Store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, concealMissing(sub, policy.ReadBooking, err)
	}
	trip, err := s.Store.Trips().GetByID(ctx, b.TripID)
	if err != nil {
		return models.Booking{}, err
	}
	if err := policy.Authorize(sub, policy.ReadBooking, policy.ForBooking(b, trip, s.now())); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

// List returns the caller's bookings: a customer's own requests, or every booking on an
// owner's trips.
func (s BookingService) List(ctx context.Context, sub policy.Subject) ([]models.Booking, error) {
	switch sub.Role {
	case domain.RoleCustomer:
		if err := policy.Authorize(sub, policy.ReadBooking, policy.Resource{BookingCustomerID: sub.UserID}); err != nil {
			return nil, err
		}
		return s.Store.Bookings().ListByCustomer(ctx, sub.UserID)
	case domain.RoleOwner:
		if err := policy.Authorize(sub, policy.ReadBooking, policy.Resource{TripOwnerID: sub.UserID}); err != nil {
			return nil, err
		}
		return s.Store.Bookings().ListByOwner(ctx, sub.UserID)
	default:
		return nil, policy.Authorize(sub, policy.ReadBooking, policy.Resource{})
	}
}

// ListForTrip returns bookings on one of the owner's trips, optionally by status.
func (s BookingService) ListForTrip(ctx context.Context, sub policy.Subject, tripID int64, status string) ([]models.Booking, error) {
	trip, err := s.Store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(sub, policy.ManageOwnTrips, policy.ForTrip(trip, s.now())); err != nil {
		return nil, err
	}
	st := models.BookingStatus(strings.ToLower(strings.TrimSpace(status)))
	switch st {
	case "", models.BookingPending, models.BookingAccepted, models.BookingRejected, models.BookingCancelled:
	default:
		return nil, domain.ValidationError{Field: "status", Msg: "unknown booking status"}
	}
	return s.Store.Bookings().ListByTrip(ctx, tripID, st)
}

// rejectPending auto-rejects every pending booking of a trip that can no longer be
// accepted and returns the notices for the affected customers. Callers hold the trip's
// guard and pass their transaction.
func rejectPending(ctx context.Context, tx repositories.Repos, trip models.Trip, now time.Time, reason string) ([]notify.Draft, error) {
	pending, err := tx.Bookings().ListByTrip(ctx, trip.ID, models.BookingPending)
	if err != nil {
		return nil, err
	}
	drafts := make([]notify.Draft, 0, len(pending))
	for _, b := range pending {
		b.Status = models.BookingRejected
		b.DecidedAt = &now
		if err := tx.Bookings().UpdateState(ctx, b); err != nil {
			return nil, err
		}
		id := b.ID
		drafts = append(drafts, notify.Draft{
			UserID:           b.CustomerID,
			Kind:             models.KindBookingExpired,
			Message:          fmt.Sprintf("Your booking %s for %d units was rejected automatically: %s.", b.Reference, b.CargoSize, reason),
			RelatedBookingID: &id,
		})
	}
	return drafts, nil
}

func tripDraft(t models.Trip, kind, msg string) notify.Draft {
	return notify.Draft{UserID: t.OwnerID, Kind: kind, Message: msg}
}
