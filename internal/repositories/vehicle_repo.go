package repositories

import (
	"context"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/utils"
)

type VehicleRepo struct {
	Q Querier
}

const vehicleColumns = `id, owner_id, type, capacity, registration_number, created_at`

func scanVehicle(r rowScanner) (models.Vehicle, error) {
	var v models.Vehicle
	err := r.Scan(&v.ID, &v.OwnerID, &v.Type, &v.Capacity, &v.RegistrationNumber, &v.CreatedAt)
	return v, err
}

func (r VehicleRepo) Create(ctx context.Context, v *models.Vehicle) error {
	res, err := r.Q.ExecContext(ctx, `
		INSERT INTO vehicles (owner_id, type, capacity, registration_number, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.OwnerID, v.Type, v.Capacity, utils.NormalizeCode(v.RegistrationNumber), v.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.ConflictError{Resource: "vehicle", Msg: "registration number already exists", Err: err}
		}
		return domain.InternalError{Msg: "insert vehicle", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.InternalError{Msg: "insert vehicle", Err: err}
	}
	v.ID = id
	return nil
}

func (r VehicleRepo) GetByID(ctx context.Context, id int64) (models.Vehicle, error) {
	v, err := scanVehicle(r.Q.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id=? LIMIT 1`, id))
	if err != nil {
		return models.Vehicle{}, notFoundOr(err, "vehicle")
	}
	return v, nil
}

func (r VehicleRepo) ListByOwner(ctx context.Context, ownerID int64) ([]models.Vehicle, error) {
	return r.list(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE owner_id=? ORDER BY id DESC`, ownerID)
}

func (r VehicleRepo) ListAll(ctx context.Context) ([]models.Vehicle, error) {
	return r.list(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY id DESC`)
}

func (r VehicleRepo) list(ctx context.Context, query string, args ...any) ([]models.Vehicle, error) {
	rows, err := r.Q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "query vehicles", Err: err}
	}
	defer rows.Close()

	out := []models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return out, domain.InternalError{Msg: "scan vehicle", Err: err}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
