package services

import (
	"testing"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
)

func TestSignupLoginAndToken(t *testing.T) {
	h := newHarness(t)
	auth := AuthService{Store: h.store, Notify: h.notify, Secret: []byte("test-secret"), TokenTTL: time.Hour,
		Now: func() time.Time { return h.now }}

	sess, err := auth.Signup(h.ctx, SignupInput{Email: " Alice@Example.com ", Password: "longenough", FullName: "Alice", Role: "customer"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if sess.User.Email != "alice@example.com" || sess.User.IsVerified || sess.Token == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	sub, err := ResolveSubject(h.ctx, h.store.Users(), domain.Actor{UserID: sess.User.ID, Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n := countKind(h.notifications(t, sub), models.KindWelcome); n != 1 {
		t.Fatalf("expected one welcome notification, got %d", n)
	}

	if _, err := auth.Signup(h.ctx, SignupInput{Email: "alice@example.com", Password: "longenough", Role: "owner"}); !domain.IsConflict(err) {
		t.Fatalf("duplicate email: expected conflict, got %v", err)
	}
	if _, err := auth.Signup(h.ctx, SignupInput{Email: "root@example.com", Password: "longenough", Role: "admin"}); !domain.IsValidation(err) {
		t.Fatalf("admin signup: expected validation error, got %v", err)
	}
	if _, err := auth.Signup(h.ctx, SignupInput{Email: "short@example.com", Password: "short", Role: "owner"}); !domain.IsValidation(err) {
		t.Fatalf("short password: expected validation error, got %v", err)
	}

	if _, err := auth.Login(h.ctx, "alice@example.com", "wrong-password"); !domain.IsUnauthorized(err) {
		t.Fatalf("wrong password: expected unauthorized, got %v", err)
	}
	login, err := auth.Login(h.ctx, "ALICE@example.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	actor, err := auth.ParseToken(login.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != sess.User.ID || actor.Role != domain.RoleCustomer {
		t.Fatalf("unexpected actor %+v", actor)
	}

	h.now = h.now.Add(2 * time.Hour)
	if _, err := auth.ParseToken(login.Token); !domain.IsUnauthorized(err) {
		t.Fatalf("expired token: expected unauthorized, got %v", err)
	}
	other := AuthService{Secret: []byte("other-secret"), Now: auth.Now}
	fresh, _ := auth.Login(h.ctx, "alice@example.com", "longenough")
	if _, err := other.ParseToken(fresh.Token); !domain.IsUnauthorized(err) {
		t.Fatalf("foreign signature: expected unauthorized, got %v", err)
	}
}

func TestAdminVerifyDeleteAndStats(t *testing.T) {
	h := newHarness(t)
	users := UserService{Store: h.store, Notify: h.notify, Now: func() time.Time { return h.now }}
	auth := AuthService{Store: h.store, Notify: h.notify, Secret: []byte("s"), Now: users.Now}

	if err := auth.EnsureAdmin(h.ctx, "admin@example.com", "admin-password"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := auth.EnsureAdmin(h.ctx, "admin@example.com", "admin-password"); err != nil {
		t.Fatalf("ensure admin twice: %v", err)
	}
	adminUser, _ := h.store.Users().GetByEmail(h.ctx, "admin@example.com")
	admin, err := ResolveSubject(h.ctx, h.store.Users(), domain.Actor{UserID: adminUser.ID, Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}

	owner := h.user(t, "owner@example.com", domain.RoleOwner, false)
	if _, err := h.trips.Create(h.ctx, owner, CreateTripInput{StartLocation: "A", EndLocation: "B",
		StartAt: h.now.Add(time.Hour), PricePerUnit: 1, TotalCapacity: 1}); !domain.IsForbidden(err) {
		t.Fatalf("unverified owner: expected forbidden, got %v", err)
	}

	if _, err := users.Verify(h.ctx, owner, owner.UserID, true); !domain.IsForbidden(err) {
		t.Fatalf("self verify: expected forbidden, got %v", err)
	}
	u, err := users.Verify(h.ctx, admin, owner.UserID, true)
	if err != nil || !u.IsVerified {
		t.Fatalf("verify: %+v err=%v", u, err)
	}
	if _, err := users.Verify(h.ctx, admin, owner.UserID, true); err != nil {
		t.Fatalf("verify twice: %v", err)
	}
	if n := countKind(h.notifications(t, owner), models.KindAccountVerified); n != 1 {
		t.Fatalf("expected exactly one verification notice, got %d", n)
	}

	ownerNow, err := ResolveSubject(h.ctx, h.store.Users(), domain.Actor{UserID: owner.UserID, Role: domain.RoleOwner})
	if err != nil || !ownerNow.Verified {
		t.Fatalf("expected verified subject, got %+v err=%v", ownerNow, err)
	}
	h.trip(t, ownerNow, 5, 24*time.Hour)

	stats, err := users.Stats(h.ctx, admin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 2 || stats.TotalTrips != 1 || stats.TotalBookings != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := users.Delete(h.ctx, admin, admin.UserID); !domain.IsValidation(err) {
		t.Fatalf("self delete: expected validation error, got %v", err)
	}
	if err := users.Delete(h.ctx, admin, owner.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := users.Delete(h.ctx, admin, owner.UserID); !domain.IsNotFound(err) {
		t.Fatalf("delete twice: expected not found, got %v", err)
	}
	if _, err := ResolveSubject(h.ctx, h.store.Users(), domain.Actor{UserID: owner.UserID, Role: domain.RoleOwner}); !domain.IsUnauthorized(err) {
		t.Fatalf("deleted account: expected unauthorized, got %v", err)
	}
	list, err := users.List(h.ctx, admin)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected only the admin left, got %d err=%v", len(list), err)
	}
	if _, err := users.List(h.ctx, ownerNow); !domain.IsForbidden(err) {
		t.Fatalf("owner listing users: expected forbidden, got %v", err)
	}
}

func TestTripSearchVisibility(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner@example.com", domain.RoleOwner, true)
	otherOwner := h.user(t, "other@example.com", domain.RoleOwner, true)
	customer := h.user(t, "customer@example.com", domain.RoleCustomer, true)
	open := h.trip(t, owner, 10, 24*time.Hour)
	full := h.trip(t, owner, 2, 24*time.Hour)
	h.trip(t, otherOwner, 10, 24*time.Hour)

	b := h.book(t, customer, full.ID, 2)
	if _, err := h.bookings.Accept(h.ctx, owner, b.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	found, err := h.trips.Search(h.ctx, customer, TripSearch{StartLocation: "pekan"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("customer should see the two open trips, got %d", len(found))
	}
	for _, tr := range found {
		if tr.ID == full.ID {
			t.Fatalf("closed trip must not be listed")
		}
	}

	roomy, _ := h.trips.Search(h.ctx, customer, TripSearch{MinCapacity: 11})
	if len(roomy) != 0 {
		t.Fatalf("no trip has 11 free units, got %d", len(roomy))
	}

	own, err := h.trips.Search(h.ctx, owner, TripSearch{})
	if err != nil || len(own) != 2 {
		t.Fatalf("owner should see own two trips, got %d err=%v", len(own), err)
	}
	mine, err := h.trips.Mine(h.ctx, owner)
	if err != nil || len(mine) != 2 {
		t.Fatalf("mine: got %d err=%v", len(mine), err)
	}

	if _, err := h.trips.Get(h.ctx, customer, full.ID); err != nil {
		t.Fatalf("customer with a booking should read the closed trip: %v", err)
	}
	stranger := h.user(t, "stranger@example.com", domain.RoleCustomer, true)
	if _, err := h.trips.Get(h.ctx, stranger, full.ID); !domain.IsForbidden(err) {
		t.Fatalf("stranger on closed trip: expected forbidden, got %v", err)
	}
	if _, err := h.trips.Get(h.ctx, otherOwner, open.ID); !domain.IsForbidden(err) {
		t.Fatalf("foreign owner: expected forbidden, got %v", err)
	}

	if _, err := h.trips.Create(h.ctx, owner, CreateTripInput{StartLocation: "A", EndLocation: "B",
		StartAt: h.now.Add(-time.Hour), PricePerUnit: 1, TotalCapacity: 1}); !domain.IsValidation(err) {
		t.Fatalf("past start: expected validation error, got %v", err)
	}
}
