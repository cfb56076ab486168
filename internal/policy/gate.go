// Package policy is the single authorization check site for the engine.
// Authorize is pure: it reads the subject and the ownership facts of the resource and
// never touches storage.
package policy

import (
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
)

type Capability string

const (
	ReadTrip          Capability = "read_trip"
	CreateBooking     Capability = "create_booking"
	DecideBooking     Capability = "decide_booking"
	ManageOwnVehicles Capability = "manage_own_vehicles"
	AdminManageUsers  Capability = "admin_manage_users"
	ManageOwnTrips    Capability = "manage_own_trips"
	ReadBooking       Capability = "read_booking"
	CancelBooking     Capability = "cancel_booking"
	ReadNotifications Capability = "read_notifications"
)

// Subject is the authenticated caller.
type Subject struct {
	UserID   int64
	Role     domain.Role
	Verified bool
}

// Resource carries the ownership facts a decision depends on. Zero ids mean "not
// applicable" (e.g. a trip that is about to be created).
type Resource struct {
	TripOwnerID        int64
	TripStatus         models.TripStatus
	TripStartAt        time.Time
	BookingCustomerID  int64
	VehicleOwnerID     int64
	NotificationUserID int64
	TargetUserID       int64
	Now                time.Time
}

func ForTrip(t models.Trip, now time.Time) Resource {
	return Resource{TripOwnerID: t.OwnerID, TripStatus: t.Status, TripStartAt: t.StartAt, Now: now}
}

func ForBooking(b models.Booking, t models.Trip, now time.Time) Resource {
	r := ForTrip(t, now)
	r.BookingCustomerID = b.CustomerID
	return r
}

func ForVehicle(v models.Vehicle) Resource {
	return Resource{VehicleOwnerID: v.OwnerID}
}

func ForNotification(n models.Notification) Resource {
	return Resource{NotificationUserID: n.UserID}
}

func ForUser(id int64) Resource {
	return Resource{TargetUserID: id}
}

type rolePolicy interface {
	authorize(s Subject, c Capability, r Resource) error
}

var policies = map[domain.Role]rolePolicy{
	domain.RoleCustomer: customerPolicy{},
	domain.RoleOwner:    ownerPolicy{},
	domain.RoleAdmin:    adminPolicy{},
}

// Authorize returns nil when s may exercise c on r, otherwise a domain.ForbiddenError.
func Authorize(s Subject, c Capability, r Resource) error {
	if s.UserID <= 0 {
		return deny(c, "unauthenticated")
	}
	p, ok := policies[s.Role]
	if !ok {
		return deny(c, "unknown role")
	}
	// notifications are private to their recipient, whatever the role
	if c == ReadNotifications {
		if r.NotificationUserID != 0 && r.NotificationUserID != s.UserID {
			return deny(c, "notification belongs to another user")
		}
		return nil
	}
	return p.authorize(s, c, r)
}

func deny(c Capability, msg string) error {
	return domain.ForbiddenError{Capability: string(c), Msg: msg}
}

type customerPolicy struct{}

func (customerPolicy) authorize(s Subject, c Capability, r Resource) error {
	switch c {
	case ReadTrip:
		if r.TripStatus == models.TripOpen || (r.BookingCustomerID != 0 && r.BookingCustomerID == s.UserID) {
			return nil
		}
		return deny(c, "trip is not open")
	case CreateBooking:
		if !s.Verified {
			return deny(c, "account is not verified")
		}
		if r.TripStatus != models.TripOpen {
			return deny(c, "trip is not open")
		}
		if !r.Now.IsZero() && !r.Now.Before(r.TripStartAt) {
			return deny(c, "trip has already started")
		}
		return nil
	case ReadBooking, CancelBooking:
		if r.BookingCustomerID == s.UserID {
			return nil
		}
		return deny(c, "booking belongs to another customer")
	default:
		return deny(c, "not allowed for customers")
	}
}

type ownerPolicy struct{}

func (ownerPolicy) authorize(s Subject, c Capability, r Resource) error {
	switch c {
	case ReadTrip, DecideBooking, ReadBooking, CancelBooking:
		if r.TripOwnerID == s.UserID {
			return nil
		}
		return deny(c, "trip belongs to another owner")
	case ManageOwnTrips:
		return ownsOrCreates(s, c, r.TripOwnerID)
	case ManageOwnVehicles:
		return ownsOrCreates(s, c, r.VehicleOwnerID)
	default:
		return deny(c, "not allowed for owners")
	}
}

// ownsOrCreates lets a verified owner create a new resource (ownerID == 0) and any owner
// manage the ones they already own.
func ownsOrCreates(s Subject, c Capability, ownerID int64) error {
	if ownerID == 0 {
		if !s.Verified {
			return deny(c, "account is not verified")
		}
		return nil
	}
	if ownerID != s.UserID {
		return deny(c, "resource belongs to another owner")
	}
	return nil
}

type adminPolicy struct{}

func (adminPolicy) authorize(_ Subject, c Capability, r Resource) error {
	switch c {
	case AdminManageUsers:
		return nil
	case ReadTrip:
		if r.TripStatus == models.TripOpen {
			return nil
		}
		return deny(c, "trip is not open")
	default:
		return deny(c, "admins have no trip or booking authority")
	}
}
