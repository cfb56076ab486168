package models

import (
	"time"

	"loadmatch/internal/domain"
)

type User struct {
	ID             int64       `json:"id"`
	Email          string      `json:"email"`
	FullName       string      `json:"full_name"`
	Phone          string      `json:"phone"`
	ProfilePicture string      `json:"profile_picture,omitempty"`
	Role           domain.Role `json:"role"`
	IsVerified     bool        `json:"is_verified"`
	PasswordHash   string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	DeletedAt      *time.Time  `json:"-"`
}

// Deleted reports a soft-deleted account.
func (u User) Deleted() bool { return u.DeletedAt != nil }

// UserUpdate supports PATCH-style updates via pointer presence.
type UserUpdate struct {
	FullName       *string
	Phone          *string
	ProfilePicture *string
	PasswordHash   *string
}

// SystemStats are the admin dashboard aggregates.
type SystemStats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalTrips    int64 `json:"total_trips"`
	TotalBookings int64 `json:"total_bookings"`
}
