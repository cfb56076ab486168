// Package notify appends notifications inside the caller's transaction and serves the
// read/unread polling contract. Push delivery through the Hub is best effort.
package notify

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Outbox collects rows written in one transaction. Flush it only after commit.
type Outbox struct {
	items []models.Notification
}

func (o *Outbox) Items() []models.Notification {
	if o == nil {
		return nil
	}
	return o.items
}

type Dispatcher struct {
	Store     repositories.Store
	Publisher message.Publisher
}

func NewDispatcher(store repositories.Store, publisher message.Publisher) Dispatcher {
	return Dispatcher{Store: store, Publisher: publisher}
}

// Publish appends one notification through repo, which must be bound to the transaction
// of the state change that caused it.
func (d Dispatcher) Publish(ctx context.Context, repo repositories.NotificationRepository, out *Outbox,
	userID int64, kind, msg string, relatedBookingID *int64) (models.Notification, error) {
	msg = strings.TrimSpace(msg)
	if userID <= 0 {
		return models.Notification{}, domain.ValidationError{Field: "user_id", Msg: "required"}
	}
	if msg == "" {
		return models.Notification{}, domain.ValidationError{Field: "message", Msg: "required"}
	}
	n := models.Notification{
		UserID:           userID,
		Kind:             kind,
		Message:          msg,
		RelatedBookingID: relatedBookingID,
	}
	if err := repo.Create(ctx, &n); err != nil {
		return models.Notification{}, err
	}
	if out != nil {
		out.items = append(out.items, n)
	}
	return n, nil
}

// Draft is a notification staged for PublishBatch.
type Draft struct {
	UserID           int64
	Kind             string
	Message          string
	RelatedBookingID *int64
}

// PublishBatch appends drafts in ascending recipient order. Creating a row locks its
// recipient, so every transaction that writes several notifications takes user locks in
// the same order after its trip lock.
func (d Dispatcher) PublishBatch(ctx context.Context, repo repositories.NotificationRepository, out *Outbox, drafts []Draft) error {
	ordered := make([]Draft, len(drafts))
	copy(ordered, drafts)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].UserID < ordered[j].UserID })
	for _, dr := range ordered {
		if _, err := d.Publish(ctx, repo, out, dr.UserID, dr.Kind, dr.Message, dr.RelatedBookingID); err != nil {
			return err
		}
	}
	return nil
}

// Flush pushes committed rows to the broker. Failures are logged only: the stored row
// stays the source of truth for polling clients.
func (d Dispatcher) Flush(ctx context.Context, out *Outbox) {
	if d.Publisher == nil || out == nil {
		return
	}
	for _, n := range out.items {
		payload, err := json.Marshal(n)
		if err != nil {
			utils.LogError(ctx, "notify", "flush", err, "notification_id", n.ID)
			continue
		}
		m := message.NewMessage(watermill.NewUUID(), payload)
		m.Metadata.Set("user_id", strconv.FormatInt(n.UserID, 10))
		m.Metadata.Set("kind", n.Kind)
		if rid := utils.RequestIDFrom(ctx); rid != "" {
			m.Metadata.Set("request_id", rid)
		}
		if err := d.Publisher.Publish(Topic, m); err != nil {
			utils.LogError(ctx, "notify", "flush", err, "notification_id", n.ID)
		}
	}
	out.items = nil
}

// ListQuery is the polling request. After and Before are opaque cursors.
type ListQuery struct {
	After  string
	Before string
	Limit  int
}

// Page is one poll result. NextCursor is the newest position the client has seen and is
// what it sends as After next time; OlderCursor pages back through history.
type Page struct {
	Items       []models.Notification `json:"items"`
	NextCursor  string                `json:"next_cursor,omitempty"`
	OlderCursor string                `json:"older_cursor,omitempty"`
	Unread      int64                 `json:"unread"`
}

func (d Dispatcher) List(ctx context.Context, s policy.Subject, userID int64, q ListQuery) (Page, error) {
	if err := policy.Authorize(s, policy.ReadNotifications, policy.Resource{NotificationUserID: userID}); err != nil {
		return Page{}, err
	}

	nq := models.NotificationQuery{Limit: clampLimit(q.Limit)}
	if strings.TrimSpace(q.After) != "" {
		c, err := models.ParseCursor(q.After)
		if err != nil {
			return Page{}, domain.ValidationError{Field: "after", Msg: err.Error()}
		}
		nq.After = &c
	}
	if strings.TrimSpace(q.Before) != "" {
		c, err := models.ParseCursor(q.Before)
		if err != nil {
			return Page{}, domain.ValidationError{Field: "before", Msg: err.Error()}
		}
		nq.Before = &c
	}
	if nq.After != nil && nq.Before != nil {
		return Page{}, domain.ValidationError{Field: "after", Msg: "after and before are mutually exclusive"}
	}

	repo := d.Store.Notifications()
	items, err := repo.ListByUser(ctx, userID, nq)
	if err != nil {
		return Page{}, err
	}
	unread, err := repo.CountUnread(ctx, userID)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: items, Unread: unread}
	switch {
	case len(items) > 0:
		page.OlderCursor = models.CursorOf(items[len(items)-1]).String()
		if nq.Before == nil {
			page.NextCursor = models.CursorOf(items[0]).String()
		}
	case nq.After != nil:
		page.NextCursor = nq.After.String()
	}
	return page, nil
}

// MarkRead flips one notification to read. Already-read rows are returned without a write.
func (d Dispatcher) MarkRead(ctx context.Context, s policy.Subject, id int64) (models.Notification, error) {
	repo := d.Store.Notifications()
	n, err := repo.GetByID(ctx, id)
	if err != nil {
		return models.Notification{}, err
	}
	if err := policy.Authorize(s, policy.ReadNotifications, policy.ForNotification(n)); err != nil {
		return models.Notification{}, err
	}
	if n.IsRead {
		return n, nil
	}
	if err := repo.MarkRead(ctx, id); err != nil {
		return models.Notification{}, err
	}
	n.IsRead = true
	utils.LogEvent(ctx, "notify", "mark_read", "notification read", "notification_id", id, "user_id", s.UserID)
	return n, nil
}

func (d Dispatcher) MarkAllRead(ctx context.Context, s policy.Subject) (int64, error) {
	if err := policy.Authorize(s, policy.ReadNotifications, policy.Resource{NotificationUserID: s.UserID}); err != nil {
		return 0, err
	}
	n, err := d.Store.Notifications().MarkAllRead(ctx, s.UserID)
	if err != nil {
		return 0, err
	}
	utils.LogEvent(ctx, "notify", "mark_all_read", "notifications read", "user_id", s.UserID, "count", n)
	return n, nil
}

func (d Dispatcher) UnreadCount(ctx context.Context, s policy.Subject) (int64, error) {
	if err := policy.Authorize(s, policy.ReadNotifications, policy.Resource{NotificationUserID: s.UserID}); err != nil {
		return 0, err
	}
	return d.Store.Notifications().CountUnread(ctx, s.UserID)
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
