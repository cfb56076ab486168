package services

import (
	"context"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

type VehicleService struct {
	Store repositories.Store
	Now   func() time.Time
}

type CreateVehicleInput struct {
	Type               string `json:"type"`
	Capacity           int64  `json:"capacity"`
	RegistrationNumber string `json:"registration_number"`
}

func (s VehicleService) Create(ctx context.Context, sub policy.Subject, in CreateVehicleInput) (models.Vehicle, error) {
	if err := policy.Authorize(sub, policy.ManageOwnVehicles, policy.Resource{}); err != nil {
		return models.Vehicle{}, err
	}
	in.Type = utils.NormalizeSpace(in.Type)
	in.RegistrationNumber = utils.NormalizeCode(in.RegistrationNumber)
	switch {
	case in.Type == "":
		return models.Vehicle{}, domain.ValidationError{Field: "type", Msg: "required"}
	case in.Capacity <= 0:
		return models.Vehicle{}, domain.ValidationError{Field: "capacity", Msg: "must be greater than 0"}
	case in.RegistrationNumber == "":
		return models.Vehicle{}, domain.ValidationError{Field: "registration_number", Msg: "required"}
	}

	v := models.Vehicle{
		OwnerID:            sub.UserID,
		Type:               in.Type,
		Capacity:           in.Capacity,
		RegistrationNumber: in.RegistrationNumber,
		CreatedAt:          clock(s.Now).now(),
	}
	if err := s.Store.Vehicles().Create(ctx, &v); err != nil {
		return models.Vehicle{}, err
	}
	utils.LogEvent(ctx, "vehicle", "create", "vehicle registered", "vehicle_id", v.ID, "owner_id", v.OwnerID)
	return v, nil
}

// List returns the owner's fleet. Admins get every vehicle.
func (s VehicleService) List(ctx context.Context, sub policy.Subject) ([]models.Vehicle, error) {
	if sub.Role == domain.RoleAdmin {
		if err := policy.Authorize(sub, policy.AdminManageUsers, policy.Resource{}); err != nil {
			return nil, err
		}
		return s.Store.Vehicles().ListAll(ctx)
	}
	if err := policy.Authorize(sub, policy.ManageOwnVehicles, policy.Resource{VehicleOwnerID: sub.UserID}); err != nil {
		return nil, err
	}
	return s.Store.Vehicles().ListByOwner(ctx, sub.UserID)
}

func (s VehicleService) Get(ctx context.Context, sub policy.Subject, id int64) (models.Vehicle, error) {
	v, err := s.Store.Vehicles().GetByID(ctx, id)
	if err != nil {
		return models.Vehicle{}, err
	}
	if err := policy.Authorize(sub, policy.ManageOwnVehicles, policy.ForVehicle(v)); err != nil {
		return models.Vehicle{}, err
	}
	return v, nil
}
