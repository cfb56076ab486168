package repositories

import (
	"context"
	"database/sql"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
)

type BookingRepo struct {
	Q Querier
}

const bookingColumns = `b.id, b.booking_reference, b.trip_id, b.customer_id, b.cargo_size, b.total_price,
	b.status, b.created_at, b.decided_at, b.cancelled_at`

func scanBooking(r rowScanner) (models.Booking, error) {
	var (
		b         models.Booking
		status    string
		decided   sql.NullTime
		cancelled sql.NullTime
	)
	err := r.Scan(
		&b.ID,
		&b.Reference,
		&b.TripID,
		&b.CustomerID,
		&b.CargoSize,
		&b.TotalPrice,
		&status,
		&b.CreatedAt,
		&decided,
		&cancelled,
	)
	b.Status = models.BookingStatus(status)
	b.DecidedAt = timePtr(decided)
	b.CancelledAt = timePtr(cancelled)
	return b, err
}

func (r BookingRepo) Create(ctx context.Context, b *models.Booking) error {
	res, err := r.Q.ExecContext(ctx, `
		INSERT INTO bookings (booking_reference, trip_id, customer_id, cargo_size, total_price, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.Reference, b.TripID, b.CustomerID, b.CargoSize, b.TotalPrice, string(b.Status), b.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.ConflictError{Resource: "booking", Msg: "reference already used", Err: err}
		}
		return domain.InternalError{Msg: "insert booking", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.InternalError{Msg: "insert booking", Err: err}
	}
	b.ID = id
	return nil
}

func (r BookingRepo) GetByID(ctx context.Context, id int64) (models.Booking, error) {
	b, err := scanBooking(r.Q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=? LIMIT 1`, id))
	if err != nil {
		return models.Booking{}, notFoundOr(err, "booking")
	}
	return b, nil
}

func (r BookingRepo) UpdateState(ctx context.Context, b models.Booking) error {
	_, err := r.Q.ExecContext(ctx, `UPDATE bookings SET status=?, decided_at=?, cancelled_at=? WHERE id=?`,
		string(b.Status), nullTime(b.DecidedAt), nullTime(b.CancelledAt), b.ID)
	if err != nil {
		return domain.InternalError{Msg: "update booking", Err: err}
	}
	return nil
}

func (r BookingRepo) ListByCustomer(ctx context.Context, customerID int64) ([]models.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.customer_id=? ORDER BY b.id DESC`, customerID)
}

func (r BookingRepo) ListByOwner(ctx context.Context, ownerID int64) ([]models.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b JOIN trips t ON t.id = b.trip_id
		WHERE t.owner_id=? ORDER BY b.id DESC`, ownerID)
}

// ListByTrip returns bookings of a trip in creation order. An empty status lists all.
func (r BookingRepo) ListByTrip(ctx context.Context, tripID int64, status models.BookingStatus) ([]models.Booking, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.trip_id=? ORDER BY b.id ASC`, tripID)
	}
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.trip_id=? AND b.status=? ORDER BY b.id ASC`,
		tripID, string(status))
}

func (r BookingRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.Q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n); err != nil {
		return 0, domain.InternalError{Msg: "count bookings", Err: err}
	}
	return n, nil
}

func (r BookingRepo) list(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.Q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "query bookings", Err: err}
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan booking", Err: err}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
