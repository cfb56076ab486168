package policy

import (
	"testing"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
)

func TestAuthorize(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	openTrip := models.Trip{ID: 1, OwnerID: 10, Status: models.TripOpen, StartAt: now.Add(24 * time.Hour)}
	closedTrip := openTrip
	closedTrip.Status = models.TripClosed
	startedTrip := openTrip
	startedTrip.StartAt = now.Add(-time.Minute)
	booking := models.Booking{ID: 5, TripID: 1, CustomerID: 20}

	customer := Subject{UserID: 20, Role: domain.RoleCustomer, Verified: true}
	unverified := Subject{UserID: 21, Role: domain.RoleCustomer}
	otherCustomer := Subject{UserID: 22, Role: domain.RoleCustomer, Verified: true}
	owner := Subject{UserID: 10, Role: domain.RoleOwner, Verified: true}
	otherOwner := Subject{UserID: 11, Role: domain.RoleOwner, Verified: true}
	unverifiedOwner := Subject{UserID: 12, Role: domain.RoleOwner}
	admin := Subject{UserID: 1, Role: domain.RoleAdmin, Verified: true}
	ghost := Subject{UserID: 99, Role: "driver", Verified: true}

	cases := []struct {
		name  string
		s     Subject
		c     Capability
		r     Resource
		allow bool
	}{
		{"customer books open trip", customer, CreateBooking, ForTrip(openTrip, now), true},
		{"unverified customer cannot book", unverified, CreateBooking, ForTrip(openTrip, now), false},
		{"customer cannot book closed trip", customer, CreateBooking, ForTrip(closedTrip, now), false},
		{"customer cannot book started trip", customer, CreateBooking, ForTrip(startedTrip, now), false},
		{"owner cannot book", owner, CreateBooking, ForTrip(openTrip, now), false},
		{"admin cannot book", admin, CreateBooking, ForTrip(openTrip, now), false},

		{"trip owner decides", owner, DecideBooking, ForBooking(booking, openTrip, now), true},
		{"other owner cannot decide", otherOwner, DecideBooking, ForBooking(booking, openTrip, now), false},
		{"customer cannot decide", customer, DecideBooking, ForBooking(booking, openTrip, now), false},
		{"admin cannot decide", admin, DecideBooking, ForBooking(booking, openTrip, now), false},

		{"customer reads own booking", customer, ReadBooking, ForBooking(booking, openTrip, now), true},
		{"customer cannot read foreign booking", otherCustomer, ReadBooking, ForBooking(booking, openTrip, now), false},
		{"owner reads booking on own trip", owner, ReadBooking, ForBooking(booking, openTrip, now), true},
		{"other owner cannot read booking", otherOwner, ReadBooking, ForBooking(booking, openTrip, now), false},
		{"customer cancels own booking", customer, CancelBooking, ForBooking(booking, openTrip, now), true},
		{"owner cancels booking on own trip", owner, CancelBooking, ForBooking(booking, openTrip, now), true},

		{"customer reads open trip", customer, ReadTrip, ForTrip(openTrip, now), true},
		{"customer cannot read closed trip", otherCustomer, ReadTrip, ForTrip(closedTrip, now), false},
		{"customer reads closed trip of own booking", customer, ReadTrip, ForBooking(booking, closedTrip, now), true},
		{"owner reads own closed trip", owner, ReadTrip, ForTrip(closedTrip, now), true},
		{"owner cannot read foreign trip", otherOwner, ReadTrip, ForTrip(openTrip, now), false},
		{"admin reads open trip", admin, ReadTrip, ForTrip(openTrip, now), true},
		{"admin cannot read closed trip", admin, ReadTrip, ForTrip(closedTrip, now), false},

		{"verified owner creates trip", owner, ManageOwnTrips, Resource{}, true},
		{"unverified owner cannot create trip", unverifiedOwner, ManageOwnTrips, Resource{}, false},
		{"owner manages own trip", owner, ManageOwnTrips, ForTrip(openTrip, now), true},
		{"owner cannot manage foreign trip", otherOwner, ManageOwnTrips, ForTrip(openTrip, now), false},
		{"customer cannot create trip", customer, ManageOwnTrips, Resource{}, false},
		{"verified owner adds vehicle", owner, ManageOwnVehicles, Resource{}, true},
		{"owner cannot touch foreign vehicle", otherOwner, ManageOwnVehicles, ForVehicle(models.Vehicle{OwnerID: 10}), false},
		{"admin cannot add vehicle", admin, ManageOwnVehicles, Resource{}, false},

		{"admin manages users", admin, AdminManageUsers, ForUser(20), true},
		{"owner cannot manage users", owner, AdminManageUsers, ForUser(20), false},
		{"customer cannot manage users", customer, AdminManageUsers, ForUser(20), false},

		{"recipient reads notification", customer, ReadNotifications, ForNotification(models.Notification{UserID: 20}), true},
		{"other user cannot read notification", owner, ReadNotifications, ForNotification(models.Notification{UserID: 20}), false},
		{"admin cannot read others notification", admin, ReadNotifications, ForNotification(models.Notification{UserID: 20}), false},

		{"unknown role denied", ghost, ReadTrip, ForTrip(openTrip, now), false},
		{"unknown role denied notifications", ghost, ReadNotifications, Resource{}, false},
		{"anonymous denied", Subject{Role: domain.RoleAdmin}, AdminManageUsers, Resource{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.s, tc.c, tc.r)
			if tc.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allow {
				if err == nil {
					t.Fatalf("expected forbidden, got nil")
				}
				if !domain.IsForbidden(err) {
					t.Fatalf("expected ForbiddenError, got %T", err)
				}
			}
		})
	}
}
