package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	KindWelcome          = "welcome"
	KindAccountVerified  = "account_verified"
	KindBookingRequested = "booking_requested"
	KindBookingAccepted  = "booking_accepted"
	KindBookingRejected  = "booking_rejected"
	KindBookingCancelled = "booking_cancelled"
	KindBookingExpired   = "booking_expired"
	KindTripFull         = "trip_full"
	KindTripReopened     = "trip_reopened"
	KindTripClosed       = "trip_closed"
	KindTripDeparted     = "trip_departed"
)

// Notification is an append-only message addressed to one user.
type Notification struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Kind             string    `json:"kind"`
	Message          string    `json:"message"`
	RelatedBookingID *int64    `json:"related_booking_id,omitempty"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

// NotificationQuery selects a window of a user's notifications.
type NotificationQuery struct {
	After  *Cursor
	Before *Cursor
	Limit  int
}

// Cursor is a position in a user's notification stream.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// CursorOf returns the cursor pointing at n.
func CursorOf(n Notification) Cursor {
	return Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
}

// After reports whether n sorts strictly after the cursor.
func (c Cursor) After(n Notification) bool {
	if n.CreatedAt.Equal(c.CreatedAt) {
		return n.ID > c.ID
	}
	return n.CreatedAt.After(c.CreatedAt)
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d_%d", c.CreatedAt.UnixNano(), c.ID)
}

// ParseCursor decodes the opaque form produced by Cursor.String.
func ParseCursor(s string) (Cursor, error) {
	ts, id, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok {
		return Cursor{}, fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor time: %w", err)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n < 0 {
		return Cursor{}, fmt.Errorf("malformed cursor id")
	}
	return Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: n}, nil
}
