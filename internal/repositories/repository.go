package repositories

import (
	"context"
	"time"

	"loadmatch/internal/domain/models"
)

type TripRepository interface {
	Create(ctx context.Context, t *models.Trip) error
	GetByID(ctx context.Context, id int64) (models.Trip, error)
	// GetForUpdate reads the trip and holds its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (models.Trip, error)
	UpdateCapacity(ctx context.Context, id, committed int64, status models.TripStatus) error
	UpdateStatus(ctx context.Context, id int64, status models.TripStatus) error
	Search(ctx context.Context, f models.TripFilter) ([]models.Trip, error)
	// ListStartedBefore returns trips whose start is at or before t and that are still open
	// or closed with pending bookings.
	ListStartedBefore(ctx context.Context, t time.Time) ([]models.Trip, error)
	Count(ctx context.Context) (int64, error)
}

type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id int64) (models.Booking, error)
	// UpdateState persists status, decided_at and cancelled_at.
	UpdateState(ctx context.Context, b models.Booking) error
	ListByCustomer(ctx context.Context, customerID int64) ([]models.Booking, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Booking, error)
	ListByTrip(ctx context.Context, tripID int64, status models.BookingStatus) ([]models.Booking, error)
	Count(ctx context.Context) (int64, error)
}

type NotificationRepository interface {
	// Create appends a row. Implementations serialize appends per recipient so that
	// id order matches commit order for a user.
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id int64) (models.Notification, error)
	// ListByUser returns newest first. With q.After set it returns the oldest rows after
	// the cursor (still ordered newest first) so a bounded page never skips rows.
	ListByUser(ctx context.Context, userID int64, q models.NotificationQuery) ([]models.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id int64, upd models.UserUpdate) error
	SetVerified(ctx context.Context, id int64, verified bool) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

type VehicleRepository interface {
	Create(ctx context.Context, v *models.Vehicle) error
	GetByID(ctx context.Context, id int64) (models.Vehicle, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Vehicle, error)
	ListAll(ctx context.Context) ([]models.Vehicle, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos interface {
	Trips() TripRepository
	Bookings() BookingRepository
	Notifications() NotificationRepository
	Users() UserRepository
	Vehicles() VehicleRepository
}

// Store is the persistence boundary of the engine.
type Store interface {
	Repos
	// WithTx runs fn in one transaction. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(tx Repos) error) error
	Ping(ctx context.Context) error
}
