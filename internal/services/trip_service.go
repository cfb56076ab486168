package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/ledger"
	"loadmatch/internal/notify"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

type TripService struct {
	Store  repositories.Store
	Ledger *ledger.Ledger
	Notify notify.Dispatcher
	Now    func() time.Time
}

type CreateTripInput struct {
	VehicleID     *int64    `json:"vehicle_id"`
	StartLocation string    `json:"start_location"`
	EndLocation   string    `json:"end_location"`
	StartAt       time.Time `json:"start_datetime"`
	PricePerUnit  float64   `json:"price_per_unit"`
	Description   string    `json:"description"`
	TotalCapacity int64     `json:"total_capacity"`
}

type TripSearch struct {
	StartLocation string
	EndLocation   string
	MinCapacity   int64
	Page          domain.Pagination
}

func (s TripService) now() time.Time { return clock(s.Now).now() }

func (s TripService) Create(ctx context.Context, sub policy.Subject, in CreateTripInput) (models.Trip, error) {
	if err := policy.Authorize(sub, policy.ManageOwnTrips, policy.Resource{}); err != nil {
		return models.Trip{}, err
	}

	in.StartLocation = utils.NormalizeSpace(in.StartLocation)
	in.EndLocation = utils.NormalizeSpace(in.EndLocation)
	now := s.now()
	switch {
	case in.StartLocation == "":
		return models.Trip{}, domain.ValidationError{Field: "start_location", Msg: "required"}
	case in.EndLocation == "":
		return models.Trip{}, domain.ValidationError{Field: "end_location", Msg: "required"}
	case strings.EqualFold(in.StartLocation, in.EndLocation):
		return models.Trip{}, domain.ValidationError{Field: "end_location", Msg: "must differ from start_location"}
	case in.TotalCapacity <= 0:
		return models.Trip{}, domain.ValidationError{Field: "total_capacity", Msg: "must be greater than 0"}
	case in.PricePerUnit <= 0:
		return models.Trip{}, domain.ValidationError{Field: "price_per_unit", Msg: "must be greater than 0"}
	case !in.StartAt.After(now):
		return models.Trip{}, domain.ValidationError{Field: "start_datetime", Msg: "must be in the future"}
	}

	if in.VehicleID != nil {
		v, err := s.Store.Vehicles().GetByID(ctx, *in.VehicleID)
		if err != nil {
			return models.Trip{}, err
		}
		if err := policy.Authorize(sub, policy.ManageOwnVehicles, policy.ForVehicle(v)); err != nil {
			return models.Trip{}, err
		}
		if in.TotalCapacity > v.Capacity {
			return models.Trip{}, domain.ValidationError{Field: "total_capacity", Msg: "exceeds vehicle capacity"}
		}
	}

	t := models.Trip{
		OwnerID:       sub.UserID,
		VehicleID:     in.VehicleID,
		StartLocation: in.StartLocation,
		EndLocation:   in.EndLocation,
		StartAt:       in.StartAt.UTC(),
		PricePerUnit:  in.PricePerUnit,
		Description:   strings.TrimSpace(in.Description),
		TotalCapacity: in.TotalCapacity,
		Status:        models.TripOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.Trips().Create(ctx, &t); err != nil {
		return models.Trip{}, err
	}
	utils.LogEvent(ctx, "trip", "create", "trip published", "trip_id", t.ID, "owner_id", t.OwnerID, "capacity", t.TotalCapacity)
	return t, nil
}

// Search lists trips by route. Customers and admins see open trips that have not started;
// owners see their own trips.
func (s TripService) Search(ctx context.Context, sub policy.Subject, q TripSearch) ([]models.Trip, error) {
	now := s.now()
	f := models.TripFilter{
		StartLocation: q.StartLocation,
		EndLocation:   q.EndLocation,
		MinAvailable:  q.MinCapacity,
		Limit:         q.Page.Limit(),
		Offset:        q.Page.Offset(),
	}
	if sub.Role == domain.RoleOwner {
		f.OwnerID = sub.UserID
	} else {
		f.OnlyOpen = true
		f.StartsAfter = now
	}
	trips, err := s.Store.Trips().Search(ctx, f)
	if err != nil {
		return nil, err
	}
	visible := make([]models.Trip, 0, len(trips))
	for _, t := range trips {
		if policy.Authorize(sub, policy.ReadTrip, policy.ForTrip(t, now)) == nil {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

func (s TripService) Mine(ctx context.Context, sub policy.Subject) ([]models.Trip, error) {
	if err := policy.Authorize(sub, policy.ManageOwnTrips, policy.Resource{TripOwnerID: sub.UserID}); err != nil {
		return nil, err
	}
	return s.Store.Trips().Search(ctx, models.TripFilter{OwnerID: sub.UserID})
}

func (s TripService) Get(ctx context.Context, sub policy.Subject, id int64) (models.Trip, error) {
	t, err := s.Store.Trips().GetByID(ctx, id)
	if err != nil {
		return models.Trip{}, err
	}
	res := policy.ForTrip(t, s.now())
	if sub.Role == domain.RoleCustomer && t.Status != models.TripOpen {
		// customers keep sight of trips they have booked on
		mine, err := s.Store.Bookings().ListByCustomer(ctx, sub.UserID)
		if err != nil {
			return models.Trip{}, err
		}
		for _, b := range mine {
			if b.TripID == t.ID {
				res.BookingCustomerID = sub.UserID
				break
			}
		}
	}
	if err := policy.Authorize(sub, policy.ReadTrip, res); err != nil {
		return models.Trip{}, err
	}
	return t, nil
}

// MarkDeparted finalizes a trip and auto-rejects whatever is still pending on it.
func (s TripService) MarkDeparted(ctx context.Context, sub policy.Subject, id int64) (models.Trip, error) {
	var (
		t        models.Trip
		out      notify.Outbox
		rejected int
	)
	err := s.Ledger.Guard(id, func() error {
		return s.Store.WithTx(ctx, func(tx repositories.Repos) error {
			var err error
			t, err = tx.Trips().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := policy.Authorize(sub, policy.ManageOwnTrips, policy.ForTrip(t, s.now())); err != nil {
				return err
			}
			if t.Status == models.TripDeparted {
				return domain.InvalidStateError{Resource: "trip", State: string(t.Status), Action: "depart"}
			}
			if err := tx.Trips().UpdateStatus(ctx, t.ID, models.TripDeparted); err != nil {
				return err
			}
			t.Status = models.TripDeparted
			drafts, err := rejectPending(ctx, tx, t, s.now(), "the trip has departed")
			if err != nil {
				return err
			}
			rejected = len(drafts)
			accepted, err := tx.Bookings().ListByTrip(ctx, t.ID, models.BookingAccepted)
			if err != nil {
				return err
			}
			for _, b := range accepted {
				id := b.ID
				drafts = append(drafts, notify.Draft{
					UserID: b.CustomerID,
					Kind:   models.KindTripDeparted,
					Message: fmt.Sprintf("The trip from %s to %s carrying your booking %s has departed.",
						t.StartLocation, t.EndLocation, b.Reference),
					RelatedBookingID: &id,
				})
			}
			return s.Notify.PublishBatch(ctx, tx.Notifications(), &out, drafts)
		})
	})
	if err != nil {
		return models.Trip{}, err
	}
	s.Notify.Flush(ctx, &out)
	utils.LogEvent(ctx, "trip", "depart", "trip departed", "trip_id", t.ID, "auto_rejected", rejected)
	return t, nil
}

// CloseStarted closes every open trip whose start has passed and auto-rejects pending
// bookings on started trips. It returns the number of trips touched.
func (s TripService) CloseStarted(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.Store.Trips().ListStartedBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, candidate := range due {
		var out notify.Outbox
		err := s.Ledger.Guard(candidate.ID, func() error {
			return s.Store.WithTx(ctx, func(tx repositories.Repos) error {
				t, err := tx.Trips().GetForUpdate(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if t.Status == models.TripDeparted || !t.Started(now) {
					return nil
				}
				drafts, err := rejectPending(ctx, tx, t, now, "the trip has started")
				if err != nil {
					return err
				}
				if t.Status == models.TripOpen {
					if err := tx.Trips().UpdateStatus(ctx, t.ID, models.TripClosed); err != nil {
						return err
					}
					t.Status = models.TripClosed
					drafts = append(drafts, tripDraft(t, models.KindTripClosed,
						fmt.Sprintf("Your trip from %s to %s has started and is closed to new requests.", t.StartLocation, t.EndLocation)))
				}
				return s.Notify.PublishBatch(ctx, tx.Notifications(), &out, drafts)
			})
		})
		if err != nil {
			utils.LogError(ctx, "trip", "close_started", err, "trip_id", candidate.ID)
			continue
		}
		s.Notify.Flush(ctx, &out)
		touched++
	}
	if touched > 0 {
		utils.LogEvent(ctx, "trip", "close_started", "started trips closed", "count", touched)
	}
	return touched, nil
}

// RunSweeper calls CloseStarted every interval until ctx is done.
func (s TripService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.CloseStarted(ctx); err != nil {
			utils.LogError(ctx, "trip", "sweep", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
