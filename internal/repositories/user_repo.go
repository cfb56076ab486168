package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
)

type UserRepo struct {
	Q Querier
}

const userColumns = `id, email, COALESCE(full_name, ''), COALESCE(phone, ''), COALESCE(profile_picture, ''),
	role, is_verified, password_hash, created_at, updated_at, deleted_at`

func scanUser(r rowScanner) (models.User, error) {
	var (
		u       models.User
		role    string
		deleted sql.NullTime
	)
	err := r.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Phone,
		&u.ProfilePicture,
		&role,
		&u.IsVerified,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
		&deleted,
	)
	u.Role = domain.Role(role)
	u.DeletedAt = timePtr(deleted)
	return u, err
}

func (r UserRepo) Create(ctx context.Context, u *models.User) error {
	res, err := r.Q.ExecContext(ctx, `
		INSERT INTO users (email, full_name, phone, profile_picture, role, is_verified, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strings.ToLower(strings.TrimSpace(u.Email)), u.FullName, u.Phone, u.ProfilePicture, string(u.Role),
		u.IsVerified, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.ConflictError{Resource: "user", Msg: "email already registered", Err: err}
		}
		return domain.InternalError{Msg: "insert user", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.InternalError{Msg: "insert user", Err: err}
	}
	u.ID = id
	return nil
}

func (r UserRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(r.Q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=? LIMIT 1`, id))
	if err != nil {
		return models.User{}, notFoundOr(err, "user")
	}
	return u, nil
}

func (r UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(r.Q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=? LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return models.User{}, notFoundOr(err, "user")
	}
	return u, nil
}

func (r UserRepo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.Q.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id ASC`)
	if err != nil {
		return nil, domain.InternalError{Msg: "query users", Err: err}
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan user", Err: err}
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update performs PATCH-style updates based on pointer presence.
func (r UserRepo) Update(ctx context.Context, id int64, upd models.UserUpdate) error {
	sets := []string{}
	args := []any{}
	if upd.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, strings.TrimSpace(*upd.FullName))
	}
	if upd.Phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, strings.TrimSpace(*upd.Phone))
	}
	if upd.ProfilePicture != nil {
		sets = append(sets, "profile_picture=?")
		args = append(args, strings.TrimSpace(*upd.ProfilePicture))
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, *upd.PasswordHash)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at=NOW(6)")
	args = append(args, id)
	if _, err := r.Q.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ",")+` WHERE id=?`, args...); err != nil {
		return domain.InternalError{Msg: "update user", Err: err}
	}
	return nil
}

func (r UserRepo) SetVerified(ctx context.Context, id int64, verified bool) error {
	if _, err := r.Q.ExecContext(ctx, `UPDATE users SET is_verified=?, updated_at=NOW(6) WHERE id=?`, verified, id); err != nil {
		return domain.InternalError{Msg: "verify user", Err: err}
	}
	return nil
}

func (r UserRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.Q.ExecContext(ctx, `UPDATE users SET deleted_at=?, updated_at=NOW(6) WHERE id=? AND deleted_at IS NULL`, at, id); err != nil {
		return domain.InternalError{Msg: "delete user", Err: err}
	}
	return nil
}

func (r UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.Q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, domain.InternalError{Msg: "count users", Err: err}
	}
	return n, nil
}
