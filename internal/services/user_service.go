package services

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/notify"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

const minPasswordLength = 8

type UserService struct {
	Store  repositories.Store
	Notify notify.Dispatcher
	Now    func() time.Time
}

type UpdateProfileInput struct {
	FullName       *string `json:"full_name"`
	Phone          *string `json:"phone"`
	ProfilePicture *string `json:"profile_picture"`
	Password       *string `json:"password"`
}

func (s UserService) Me(ctx context.Context, sub policy.Subject) (models.User, error) {
	return s.Store.Users().GetByID(ctx, sub.UserID)
}

func (s UserService) UpdateMe(ctx context.Context, sub policy.Subject, in UpdateProfileInput) (models.User, error) {
	upd := models.UserUpdate{FullName: in.FullName, Phone: in.Phone, ProfilePicture: in.ProfilePicture}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return models.User{}, err
		}
		upd.PasswordHash = &hash
	}
	if err := s.Store.Users().Update(ctx, sub.UserID, upd); err != nil {
		return models.User{}, err
	}
	utils.LogEvent(ctx, "user", "update_profile", "profile updated", "user_id", sub.UserID)
	return s.Store.Users().GetByID(ctx, sub.UserID)
}

func (s UserService) List(ctx context.Context, sub policy.Subject) ([]models.User, error) {
	if err := policy.Authorize(sub, policy.AdminManageUsers, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.Store.Users().List(ctx)
}

// Verify flips the admin-controlled verification flag. Granting it notifies the user.
func (s UserService) Verify(ctx context.Context, sub policy.Subject, id int64, verified bool) (models.User, error) {
	if err := policy.Authorize(sub, policy.AdminManageUsers, policy.ForUser(id)); err != nil {
		return models.User{}, err
	}
	var (
		u   models.User
		out notify.Outbox
	)
	err := s.Store.WithTx(ctx, func(tx repositories.Repos) error {
		var err error
		u, err = tx.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u.Deleted() {
			return domain.NotFoundError{Resource: "user"}
		}
		if u.IsVerified == verified {
			return nil
		}
		if err := tx.Users().SetVerified(ctx, id, verified); err != nil {
			return err
		}
		u.IsVerified = verified
		if verified {
			_, err = s.Notify.Publish(ctx, tx.Notifications(), &out, id, models.KindAccountVerified,
				"Your account has been verified. You can now publish trips and book capacity.", nil)
		}
		return err
	})
	if err != nil {
		return models.User{}, err
	}
	s.Notify.Flush(ctx, &out)
	utils.LogEvent(ctx, "admin", "verify_user", "verification updated", "user_id", id, "verified", verified, "admin_id", sub.UserID)
	return u, nil
}

// Delete soft-deletes an account so its trips, bookings and notifications stay intact.
func (s UserService) Delete(ctx context.Context, sub policy.Subject, id int64) error {
	if err := policy.Authorize(sub, policy.AdminManageUsers, policy.ForUser(id)); err != nil {
		return err
	}
	if id == sub.UserID {
		return domain.ValidationError{Field: "id", Msg: "admins cannot delete their own account"}
	}
	u, err := s.Store.Users().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Deleted() {
		return domain.NotFoundError{Resource: "user"}
	}
	if err := s.Store.Users().SoftDelete(ctx, id, clock(s.Now).now()); err != nil {
		return err
	}
	utils.LogEvent(ctx, "admin", "delete_user", "user deleted", "user_id", id, "admin_id", sub.UserID)
	return nil
}

func (s UserService) Stats(ctx context.Context, sub policy.Subject) (models.SystemStats, error) {
	if err := policy.Authorize(sub, policy.AdminManageUsers, policy.Resource{}); err != nil {
		return models.SystemStats{}, err
	}
	var (
		out models.SystemStats
		err error
	)
	if out.TotalUsers, err = s.Store.Users().Count(ctx); err != nil {
		return out, err
	}
	if out.TotalTrips, err = s.Store.Trips().Count(ctx); err != nil {
		return out, err
	}
	if out.TotalBookings, err = s.Store.Bookings().Count(ctx); err != nil {
		return out, err
	}
	return out, nil
}

func hashPassword(pw string) (string, error) {
	if len(pw) < minPasswordLength {
		return "", domain.ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.InternalError{Msg: "hash password", Err: err}
	}
	return string(hash), nil
}
