package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
)

type TripRepo struct {
	Q Querier
}

const tripColumns = `id, owner_id, vehicle_id, start_location, end_location, start_datetime,
	price_per_unit, COALESCE(description, ''), total_capacity, committed_capacity, status, created_at, updated_at`

func scanTrip(r rowScanner) (models.Trip, error) {
	var (
		t       models.Trip
		vehicle sql.NullInt64
		status  string
	)
	err := r.Scan(
		&t.ID,
		&t.OwnerID,
		&vehicle,
		&t.StartLocation,
		&t.EndLocation,
		&t.StartAt,
		&t.PricePerUnit,
		&t.Description,
		&t.TotalCapacity,
		&t.CommittedCapacity,
		&status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	t.VehicleID = int64Ptr(vehicle)
	t.Status = models.TripStatus(status)
	return t, err
}

func (r TripRepo) Create(ctx context.Context, t *models.Trip) error {
	res, err := r.Q.ExecContext(ctx, `
		INSERT INTO trips (owner_id, vehicle_id, start_location, end_location, start_datetime,
			price_per_unit, description, total_capacity, committed_capacity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.OwnerID, nullInt64(t.VehicleID), t.StartLocation, t.EndLocation, t.StartAt,
		t.PricePerUnit, t.Description, t.TotalCapacity, t.CommittedCapacity, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.InternalError{Msg: "insert trip", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.InternalError{Msg: "insert trip", Err: err}
	}
	t.ID = id
	return nil
}

func (r TripRepo) GetByID(ctx context.Context, id int64) (models.Trip, error) {
	t, err := scanTrip(r.Q.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=? LIMIT 1`, id))
	if err != nil {
		return models.Trip{}, notFoundOr(err, "trip")
	}
	return t, nil
}

func (r TripRepo) GetForUpdate(ctx context.Context, id int64) (models.Trip, error) {
	t, err := scanTrip(r.Q.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=? FOR UPDATE`, id))
	if err != nil {
		return models.Trip{}, notFoundOr(err, "trip")
	}
	return t, nil
}

// UpdateCapacity writes the ledger figures. The WHERE clause repeats the capacity bound
// so a buggy caller cannot persist an oversold trip even without the CHECK constraint.
func (r TripRepo) UpdateCapacity(ctx context.Context, id, committed int64, status models.TripStatus) error {
	res, err := r.Q.ExecContext(ctx, `
		UPDATE trips SET committed_capacity=?, status=?, updated_at=NOW(6)
		WHERE id=? AND ? BETWEEN 0 AND total_capacity
	`, committed, string(status), id, committed)
	if err != nil {
		return domain.InternalError{Msg: "update trip capacity", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.InternalError{Msg: "trip capacity update rejected"}
	}
	return nil
}

func (r TripRepo) UpdateStatus(ctx context.Context, id int64, status models.TripStatus) error {
	if _, err := r.Q.ExecContext(ctx, `UPDATE trips SET status=?, updated_at=NOW(6) WHERE id=?`, string(status), id); err != nil {
		return domain.InternalError{Msg: "update trip status", Err: err}
	}
	return nil
}

func (r TripRepo) Search(ctx context.Context, f models.TripFilter) ([]models.Trip, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.OnlyOpen {
		where = append(where, "status=?")
		args = append(args, string(models.TripOpen))
	}
	if f.OwnerID > 0 {
		where = append(where, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if s := strings.TrimSpace(f.StartLocation); s != "" {
		where = append(where, "start_location LIKE ?")
		args = append(args, "%"+s+"%")
	}
	if s := strings.TrimSpace(f.EndLocation); s != "" {
		where = append(where, "end_location LIKE ?")
		args = append(args, "%"+s+"%")
	}
	if f.MinAvailable > 0 {
		where = append(where, "(total_capacity - committed_capacity) >= ?")
		args = append(args, f.MinAvailable)
	}
	if !f.StartsAfter.IsZero() {
		where = append(where, "start_datetime > ?")
		args = append(args, f.StartsAfter)
	}

	query := `SELECT ` + tripColumns + ` FROM trips WHERE ` + strings.Join(where, " AND ") + ` ORDER BY start_datetime ASC, id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	return r.list(ctx, query, args...)
}

func (r TripRepo) ListStartedBefore(ctx context.Context, t time.Time) ([]models.Trip, error) {
	return r.list(ctx, `SELECT `+tripColumns+` FROM trips
		WHERE start_datetime <= ?
		  AND (status = ? OR (status = ? AND EXISTS (
			SELECT 1 FROM bookings b WHERE b.trip_id = trips.id AND b.status = ?)))
		ORDER BY id ASC`,
		t, string(models.TripOpen), string(models.TripClosed), string(models.BookingPending))
}

func (r TripRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.Q.QueryRowContext(ctx, `SELECT COUNT(*) FROM trips`).Scan(&n); err != nil {
		return 0, domain.InternalError{Msg: "count trips", Err: err}
	}
	return n, nil
}

func (r TripRepo) list(ctx context.Context, query string, args ...any) ([]models.Trip, error) {
	rows, err := r.Q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "query trips", Err: err}
	}
	defer rows.Close()

	out := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan trip", Err: err}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
