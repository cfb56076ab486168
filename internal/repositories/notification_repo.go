package repositories

import (
	"context"
	"database/sql"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
)

type NotificationRepo struct {
	Q Querier
}

const notificationColumns = `id, user_id, kind, message, related_booking_id, is_read, created_at`

func scanNotification(r rowScanner) (models.Notification, error) {
	var (
		n       models.Notification
		related sql.NullInt64
	)
	err := r.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &related, &n.IsRead, &n.CreatedAt)
	n.RelatedBookingID = int64Ptr(related)
	return n, err
}

// Create locks the recipient row first and takes created_at from the database clock after
// the lock is granted, so (created_at, id) per user follows commit order.
func (r NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	err := r.Q.QueryRowContext(ctx, `SELECT SYSDATE(6) FROM users WHERE id=? FOR UPDATE`, n.UserID).Scan(&n.CreatedAt)
	if err != nil {
		return notFoundOr(err, "user")
	}
	res, err := r.Q.ExecContext(ctx, `
		INSERT INTO notifications (user_id, kind, message, related_booking_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.UserID, n.Kind, n.Message, nullInt64(n.RelatedBookingID), n.IsRead, n.CreatedAt)
	if err != nil {
		return domain.InternalError{Msg: "insert notification", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.InternalError{Msg: "insert notification", Err: err}
	}
	n.ID = id
	return nil
}

func (r NotificationRepo) GetByID(ctx context.Context, id int64) (models.Notification, error) {
	n, err := scanNotification(r.Q.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=? LIMIT 1`, id))
	if err != nil {
		return models.Notification{}, notFoundOr(err, "notification")
	}
	return n, nil
}

func (r NotificationRepo) ListByUser(ctx context.Context, userID int64, q models.NotificationQuery) ([]models.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	if q.After != nil {
		rows, err := r.list(ctx, `SELECT `+notificationColumns+` FROM notifications
			WHERE user_id=? AND (created_at > ? OR (created_at = ? AND id > ?))
			ORDER BY created_at ASC, id ASC LIMIT ?`,
			userID, q.After.CreatedAt, q.After.CreatedAt, q.After.ID, limit)
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		return rows, nil
	}

	if q.Before != nil {
		return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications
			WHERE user_id=? AND (created_at < ? OR (created_at = ? AND id < ?))
			ORDER BY created_at DESC, id DESC LIMIT ?`,
			userID, q.Before.CreatedAt, q.Before.CreatedAt, q.Before.ID, limit)
	}

	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
}

func (r NotificationRepo) MarkRead(ctx context.Context, id int64) error {
	if _, err := r.Q.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=? AND is_read=0`, id); err != nil {
		return domain.InternalError{Msg: "mark notification read", Err: err}
	}
	return nil
}

func (r NotificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.Q.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE user_id=? AND is_read=0`, userID)
	if err != nil {
		return 0, domain.InternalError{Msg: "mark notifications read", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r NotificationRepo) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var n int64
	if err := r.Q.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=? AND is_read=0`, userID).Scan(&n); err != nil {
		return 0, domain.InternalError{Msg: "count unread notifications", Err: err}
	}
	return n, nil
}

func (r NotificationRepo) list(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := r.Q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "query notifications", Err: err}
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan notification", Err: err}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
