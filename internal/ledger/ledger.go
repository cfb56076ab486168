// Package ledger keeps per-trip capacity accounting. Every change to committed capacity
// goes through Reserve or Release while the trip's guard is held.
package ledger

import (
	"context"
	"fmt"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

type Ledger struct {
	locks *keyedMutex
	Now   func() time.Time
}

func New() *Ledger {
	return &Ledger{locks: newKeyedMutex(), Now: time.Now}
}

// Guard runs fn while holding the critical section of tripID. Reserve and Release must
// be called from inside fn for the same trip.
func (l *Ledger) Guard(tripID int64, fn func() error) error {
	unlock := l.locks.Lock(tripID)
	defer unlock()
	return fn()
}

// Reserve commits amount units on the trip. The trip closes once it is full.
func (l *Ledger) Reserve(ctx context.Context, trips repositories.TripRepository, tripID, amount int64) (models.Trip, error) {
	if amount <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "cargo_size", Msg: "must be greater than 0"}
	}
	t, err := trips.GetForUpdate(ctx, tripID)
	if err != nil {
		return models.Trip{}, err
	}
	if t.CommittedCapacity+amount > t.TotalCapacity {
		return t, domain.InsufficientCapacityError{TripID: tripID, Requested: amount, Available: t.Available()}
	}

	t.CommittedCapacity += amount
	if t.CommittedCapacity == t.TotalCapacity && t.Status == models.TripOpen {
		t.Status = models.TripClosed
	}
	if err := trips.UpdateCapacity(ctx, t.ID, t.CommittedCapacity, t.Status); err != nil {
		return models.Trip{}, err
	}
	utils.LogEvent(ctx, "ledger", "reserve", "capacity reserved",
		"trip_id", t.ID, "amount", amount, "committed", t.CommittedCapacity, "status", t.Status)
	return t, nil
}

// Release returns amount units to the trip. A closed trip that has not started reopens.
func (l *Ledger) Release(ctx context.Context, trips repositories.TripRepository, tripID, amount int64) (models.Trip, error) {
	if amount <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "cargo_size", Msg: "must be greater than 0"}
	}
	t, err := trips.GetForUpdate(ctx, tripID)
	if err != nil {
		return models.Trip{}, err
	}
	if t.CommittedCapacity-amount < 0 {
		return models.Trip{}, domain.InternalError{
			Msg: fmt.Sprintf("release of %d exceeds committed capacity %d on trip %d", amount, t.CommittedCapacity, tripID),
		}
	}

	t.CommittedCapacity -= amount
	if t.Status == models.TripClosed && !t.Started(l.Now()) {
		t.Status = models.TripOpen
	}
	if err := trips.UpdateCapacity(ctx, t.ID, t.CommittedCapacity, t.Status); err != nil {
		return models.Trip{}, err
	}
	utils.LogEvent(ctx, "ledger", "release", "capacity released",
		"trip_id", t.ID, "amount", amount, "committed", t.CommittedCapacity, "status", t.Status)
	return t, nil
}
