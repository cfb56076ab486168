package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ThreeDotsLabs/watermill"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/repositories/memory"
)

func seedUser(t *testing.T, store *memory.Store, email string, role domain.Role) policy.Subject {
	t.Helper()
	u := models.User{Email: email, Role: role, IsVerified: true, PasswordHash: "x"}
	if err := store.Users().Create(context.Background(), &u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return policy.Subject{UserID: u.ID, Role: u.Role, Verified: true}
}

func publish(t *testing.T, d Dispatcher, userID int64, msg string) models.Notification {
	t.Helper()
	var n models.Notification
	out := &Outbox{}
	err := d.Store.WithTx(context.Background(), func(tx repositories.Repos) error {
		var err error
		n, err = d.Publish(context.Background(), tx.Notifications(), out, userID, models.KindWelcome, msg, nil)
		return err
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	d.Flush(context.Background(), out)
	return n
}

func TestListNewestFirstWithCursor(t *testing.T) {
	store := memory.New()
	d := NewDispatcher(store, nil)
	alice := seedUser(t, store, "alice@example.com", domain.RoleCustomer)

	for _, m := range []string{"one", "two", "three"} {
		publish(t, d, alice.UserID, m)
	}

	page, err := d.List(context.Background(), alice, alice.UserID, ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 3 || page.Items[0].Message != "three" || page.Items[2].Message != "one" {
		t.Fatalf("unexpected order: %+v", page.Items)
	}
	if page.Unread != 3 {
		t.Fatalf("expected 3 unread, got %d", page.Unread)
	}

	publish(t, d, alice.UserID, "four")
	publish(t, d, alice.UserID, "five")

	// a bounded poll returns the oldest unseen rows so nothing is skipped
	small, err := d.List(context.Background(), alice, alice.UserID, ListQuery{After: page.NextCursor, Limit: 1})
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(small.Items) != 1 || small.Items[0].Message != "four" {
		t.Fatalf("expected only four, got %+v", small.Items)
	}

	rest, err := d.List(context.Background(), alice, alice.UserID, ListQuery{After: small.NextCursor})
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(rest.Items) != 1 || rest.Items[0].Message != "five" {
		t.Fatalf("expected only five, got %+v", rest.Items)
	}

	empty, err := d.List(context.Background(), alice, alice.UserID, ListQuery{After: rest.NextCursor})
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(empty.Items) != 0 || empty.NextCursor != rest.NextCursor {
		t.Fatalf("expected empty page keeping cursor, got %+v", empty)
	}

	older, err := d.List(context.Background(), alice, alice.UserID, ListQuery{Before: page.OlderCursor})
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(older.Items) != 0 {
		t.Fatalf("expected nothing older than the first row, got %+v", older.Items)
	}
}

func TestListRejectsBadCursorAndForeignUser(t *testing.T) {
	store := memory.New()
	d := NewDispatcher(store, nil)
	alice := seedUser(t, store, "alice@example.com", domain.RoleCustomer)
	bob := seedUser(t, store, "bob@example.com", domain.RoleOwner)

	if _, err := d.List(context.Background(), alice, alice.UserID, ListQuery{After: "garbage"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := d.List(context.Background(), bob, alice.UserID, ListQuery{}); !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestMarkReadIsIdempotentAndPrivate(t *testing.T) {
	store := memory.New()
	d := NewDispatcher(store, nil)
	alice := seedUser(t, store, "alice@example.com", domain.RoleCustomer)
	bob := seedUser(t, store, "bob@example.com", domain.RoleOwner)
	n := publish(t, d, alice.UserID, "hello")

	if _, err := d.MarkRead(context.Background(), bob, n.ID); !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := d.MarkRead(context.Background(), alice, n.ID)
		if err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
		if !got.IsRead {
			t.Fatalf("expected read after call #%d", i+1)
		}
	}

	stored, _ := store.Notifications().GetByID(context.Background(), n.ID)
	if !stored.IsRead || !stored.CreatedAt.Equal(n.CreatedAt) || stored.Message != n.Message {
		t.Fatalf("unexpected stored state: %+v", stored)
	}
	count, _ := d.UnreadCount(context.Background(), alice)
	if count != 0 {
		t.Fatalf("expected 0 unread, got %d", count)
	}

	if _, err := d.MarkRead(context.Background(), alice, 999); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	store := memory.New()
	d := NewDispatcher(store, nil)
	alice := seedUser(t, store, "alice@example.com", domain.RoleCustomer)
	bob := seedUser(t, store, "bob@example.com", domain.RoleOwner)
	publish(t, d, alice.UserID, "a")
	publish(t, d, alice.UserID, "b")
	publish(t, d, bob.UserID, "c")

	n, err := d.MarkAllRead(context.Background(), alice)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked, got %d err=%v", n, err)
	}
	if c, _ := d.UnreadCount(context.Background(), bob); c != 1 {
		t.Fatalf("bob's notification must stay unread, got %d", c)
	}
}

func TestPublishRolledBackLeavesNothing(t *testing.T) {
	store := memory.New()
	d := NewDispatcher(store, nil)
	alice := seedUser(t, store, "alice@example.com", domain.RoleCustomer)
	boom := errors.New("boom")

	out := &Outbox{}
	err := store.WithTx(context.Background(), func(tx repositories.Repos) error {
		if _, err := d.Publish(context.Background(), tx.Notifications(), out, alice.UserID, models.KindWelcome, "hi", nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	page, _ := d.List(context.Background(), alice, alice.UserID, ListQuery{})
	if len(page.Items) != 0 {
		t.Fatalf("expected no notifications, got %d", len(page.Items))
	}
}

func TestPublishValidation(t *testing.T) {
	store := memory.New()
	d := NewDispatcher(store, nil)
	if _, err := d.Publish(context.Background(), store.Notifications(), nil, 1, models.KindWelcome, "  ", nil); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := d.Publish(context.Background(), store.Notifications(), nil, 42, models.KindWelcome, "hi", nil); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown recipient to be not found, got %v", err)
	}
}

func TestHubDeliversFlushedNotifications(t *testing.T) {
	store := memory.New()
	broker, err := NewBroker(BrokerConfig{Kind: BrokerGoChannel}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(broker.Subscriber)
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("hub start: %v", err)
	}

	d := NewDispatcher(store, broker.Publisher)
	alice := seedUser(t, store, "alice@example.com", domain.RoleCustomer)
	bob := seedUser(t, store, "bob@example.com", domain.RoleOwner)

	aliceCh, stopAlice := hub.Listen(alice.UserID)
	defer stopAlice()
	bobCh, stopBob := hub.Listen(bob.UserID)

	sent := publish(t, d, alice.UserID, "your booking was accepted")

	select {
	case got := <-aliceCh:
		if got.ID != sent.ID || got.Message != sent.Message {
			t.Fatalf("unexpected push: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for push")
	}

	select {
	case got := <-bobCh:
		t.Fatalf("bob must not receive alice's notification: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	stopBob()
	stopBob()
	if n := hub.listenerCount(bob.UserID); n != 0 {
		t.Fatalf("expected bob's listener removed, got %d", n)
	}
}

func TestBrokerRejectsUnknownKind(t *testing.T) {
	if _, err := NewBroker(BrokerConfig{Kind: "carrier-pigeon"}, watermill.NopLogger{}); err == nil {
		t.Fatalf("expected error for unknown broker")
	}
	if _, err := NewBroker(BrokerConfig{Kind: BrokerRedis}, watermill.NopLogger{}); err == nil {
		t.Fatalf("expected error for redis without address")
	}
}

func TestPublishBatchLocksRecipientsInAscendingOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	at := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	for i, uid := range []int64{3, 5, 5, 9} {
		mock.ExpectQuery(`SELECT SYSDATE\(6\) FROM users WHERE id=\? FOR UPDATE`).WithArgs(uid).
			WillReturnRows(sqlmock.NewRows([]string{"SYSDATE(6)"}).AddRow(at))
		mock.ExpectExec(`INSERT INTO notifications`).
			WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	mock.ExpectCommit()

	store := repositories.NewSQLStore(db)
	d := NewDispatcher(store, nil)
	out := &Outbox{}
	drafts := []Draft{
		{UserID: 9, Kind: models.KindBookingExpired, Message: "first pending"},
		{UserID: 5, Kind: models.KindBookingExpired, Message: "second pending"},
		{UserID: 3, Kind: models.KindTripClosed, Message: "owner"},
		{UserID: 5, Kind: models.KindBookingExpired, Message: "third pending"},
	}
	err = store.WithTx(context.Background(), func(tx repositories.Repos) error {
		return d.PublishBatch(context.Background(), tx.Notifications(), out, drafts)
	})
	if err != nil {
		t.Fatalf("publish batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}

	items := out.Items()
	if len(items) != 4 || items[1].Message != "second pending" || items[2].Message != "third pending" {
		t.Fatalf("expected stable recipient order, got %+v", items)
	}
	if drafts[0].UserID != 9 {
		t.Fatalf("caller's drafts must not be reordered")
	}
}
