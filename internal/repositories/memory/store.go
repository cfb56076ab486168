// Package memory is an in-process Store for development and tests. It is refused in
// release mode: transactions on unrelated trips queue behind one lock.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

type state struct {
	users         map[int64]models.User
	vehicles      map[int64]models.Vehicle
	trips         map[int64]models.Trip
	bookings      map[int64]models.Booking
	notifications map[int64]models.Notification

	seq          map[string]int64
	lastNotifyAt time.Time
}

func newState() *state {
	return &state{
		users:         map[int64]models.User{},
		vehicles:      map[int64]models.Vehicle{},
		trips:         map[int64]models.Trip{},
		bookings:      map[int64]models.Booking{},
		notifications: map[int64]models.Notification{},
		seq:           map[string]int64{},
	}
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	seq := make(map[string]int64, len(s.seq))
	for k, v := range s.seq {
		seq[k] = v
	}
	return &state{
		users:         cloneMap(s.users),
		vehicles:      cloneMap(s.vehicles),
		trips:         cloneMap(s.trips),
		bookings:      cloneMap(s.bookings),
		notifications: cloneMap(s.notifications),
		seq:           seq,
		lastNotifyAt:  s.lastNotifyAt,
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Store keeps committed state behind a RWMutex. Transactions run one at a time, across
// all trips, on a private copy which replaces the committed state only when fn succeeds.
// Writes through the top-level repositories autocommit, so inside WithTx only the
// repositories handed to fn may be used.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
	now  func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock overrides the clock used for rows stamped by the store itself.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) WithTx(ctx context.Context, fn func(tx repositories.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(txRepos{v: view{s: s, st: work}}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Trips() repositories.TripRepository       { return tripRepo{view{s: s}} }
func (s *Store) Bookings() repositories.BookingRepository { return bookingRepo{view{s: s}} }
func (s *Store) Notifications() repositories.NotificationRepository {
	return notificationRepo{view{s: s}}
}
func (s *Store) Users() repositories.UserRepository       { return userRepo{view{s: s}} }
func (s *Store) Vehicles() repositories.VehicleRepository { return vehicleRepo{view{s: s}} }

type txRepos struct {
	v view
}

func (t txRepos) Trips() repositories.TripRepository                 { return tripRepo{t.v} }
func (t txRepos) Bookings() repositories.BookingRepository           { return bookingRepo{t.v} }
func (t txRepos) Notifications() repositories.NotificationRepository { return notificationRepo{t.v} }
func (t txRepos) Users() repositories.UserRepository                 { return userRepo{t.v} }
func (t txRepos) Vehicles() repositories.VehicleRepository           { return vehicleRepo{t.v} }

// view runs an operation either inside an open transaction (st set) or in autocommit mode.
type view struct {
	s  *Store
	st *state
}

func (v view) read(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(v.s.st)
}

func (v view) write(ctx context.Context, fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	return v.s.WithTx(ctx, func(tx repositories.Repos) error {
		return fn(tx.(txRepos).v.st)
	})
}

func (v view) clock() time.Time {
	return v.s.now().UTC().Truncate(time.Microsecond)
}

// ---- trips

type tripRepo struct{ view }

func (r tripRepo) Create(ctx context.Context, t *models.Trip) error {
	return r.write(ctx, func(st *state) error {
		t.ID = st.next("trips")
		st.trips[t.ID] = *t
		return nil
	})
}

func (r tripRepo) GetByID(_ context.Context, id int64) (models.Trip, error) {
	var out models.Trip
	err := r.read(func(st *state) error {
		t, ok := st.trips[id]
		if !ok {
			return domain.NotFoundError{Resource: "trip"}
		}
		out = t
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock here: transactions never overlap.
func (r tripRepo) GetForUpdate(ctx context.Context, id int64) (models.Trip, error) {
	return r.GetByID(ctx, id)
}

func (r tripRepo) UpdateCapacity(ctx context.Context, id, committed int64, status models.TripStatus) error {
	return r.write(ctx, func(st *state) error {
		t, ok := st.trips[id]
		if !ok || committed < 0 || committed > t.TotalCapacity {
			return domain.InternalError{Msg: "capacity update out of bounds"}
		}
		t.CommittedCapacity = committed
		t.Status = status
		t.UpdatedAt = r.clock()
		st.trips[id] = t
		return nil
	})
}

func (r tripRepo) UpdateStatus(ctx context.Context, id int64, status models.TripStatus) error {
	return r.write(ctx, func(st *state) error {
		t, ok := st.trips[id]
		if !ok {
			return nil
		}
		t.Status = status
		t.UpdatedAt = r.clock()
		st.trips[id] = t
		return nil
	})
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (r tripRepo) Search(_ context.Context, f models.TripFilter) ([]models.Trip, error) {
	out := []models.Trip{}
	err := r.read(func(st *state) error {
		for _, t := range st.trips {
			if f.OnlyOpen && t.Status != models.TripOpen {
				continue
			}
			if f.OwnerID > 0 && t.OwnerID != f.OwnerID {
				continue
			}
			if s := strings.TrimSpace(f.StartLocation); s != "" && !containsFold(t.StartLocation, s) {
				continue
			}
			if s := strings.TrimSpace(f.EndLocation); s != "" && !containsFold(t.EndLocation, s) {
				continue
			}
			if f.MinAvailable > 0 && t.Available() < f.MinAvailable {
				continue
			}
			if !f.StartsAfter.IsZero() && !t.StartAt.After(f.StartsAfter) {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	if f.Limit > 0 {
		out = window(out, f.Offset, f.Limit)
	}
	return out, err
}

func (r tripRepo) ListStartedBefore(_ context.Context, at time.Time) ([]models.Trip, error) {
	out := []models.Trip{}
	err := r.read(func(st *state) error {
		for _, t := range st.trips {
			if t.StartAt.After(at) {
				continue
			}
			if t.Status == models.TripOpen || (t.Status == models.TripClosed && hasPending(st, t.ID)) {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func hasPending(st *state, tripID int64) bool {
	for _, b := range st.bookings {
		if b.TripID == tripID && b.Status == models.BookingPending {
			return true
		}
	}
	return false
}

func (r tripRepo) Count(context.Context) (int64, error) {
	var n int64
	err := r.read(func(st *state) error {
		n = int64(len(st.trips))
		return nil
	})
	return n, err
}

// ---- bookings

type bookingRepo struct{ view }

func (r bookingRepo) Create(ctx context.Context, b *models.Booking) error {
	return r.write(ctx, func(st *state) error {
		for _, other := range st.bookings {
			if other.Reference == b.Reference {
				return domain.ConflictError{Resource: "booking", Msg: "reference already used"}
			}
		}
		b.ID = st.next("bookings")
		st.bookings[b.ID] = *b
		return nil
	})
}

func (r bookingRepo) GetByID(_ context.Context, id int64) (models.Booking, error) {
	var out models.Booking
	err := r.read(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return domain.NotFoundError{Resource: "booking"}
		}
		out = b
		return nil
	})
	return out, err
}

func (r bookingRepo) UpdateState(ctx context.Context, b models.Booking) error {
	return r.write(ctx, func(st *state) error {
		cur, ok := st.bookings[b.ID]
		if !ok {
			return nil
		}
		cur.Status = b.Status
		cur.DecidedAt = b.DecidedAt
		cur.CancelledAt = b.CancelledAt
		st.bookings[b.ID] = cur
		return nil
	})
}

func (r bookingRepo) filter(keep func(st *state, b models.Booking) bool, newestFirst bool) ([]models.Booking, error) {
	out := []models.Booking{}
	err := r.read(func(st *state) error {
		for _, b := range st.bookings {
			if keep(st, b) {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r bookingRepo) ListByCustomer(_ context.Context, customerID int64) ([]models.Booking, error) {
	return r.filter(func(_ *state, b models.Booking) bool { return b.CustomerID == customerID }, true)
}

func (r bookingRepo) ListByOwner(_ context.Context, ownerID int64) ([]models.Booking, error) {
	return r.filter(func(st *state, b models.Booking) bool {
		t, ok := st.trips[b.TripID]
		return ok && t.OwnerID == ownerID
	}, true)
}

func (r bookingRepo) ListByTrip(_ context.Context, tripID int64, status models.BookingStatus) ([]models.Booking, error) {
	return r.filter(func(_ *state, b models.Booking) bool {
		return b.TripID == tripID && (status == "" || b.Status == status)
	}, false)
}

func (r bookingRepo) Count(context.Context) (int64, error) {
	var n int64
	err := r.read(func(st *state) error {
		n = int64(len(st.bookings))
		return nil
	})
	return n, err
}

// ---- notifications

type notificationRepo struct{ view }

// Create stamps created_at from the store clock, never earlier than the previous append.
func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	return r.write(ctx, func(st *state) error {
		if _, ok := st.users[n.UserID]; !ok {
			return domain.NotFoundError{Resource: "user"}
		}
		at := r.clock()
		if !at.After(st.lastNotifyAt) {
			at = st.lastNotifyAt.Add(time.Microsecond)
		}
		st.lastNotifyAt = at
		n.CreatedAt = at
		n.ID = st.next("notifications")
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r notificationRepo) GetByID(_ context.Context, id int64) (models.Notification, error) {
	var out models.Notification
	err := r.read(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return domain.NotFoundError{Resource: "notification"}
		}
		out = n
		return nil
	})
	return out, err
}

func newer(a, b models.Notification) bool {
	return models.CursorOf(b).After(a)
}

func (r notificationRepo) ListByUser(_ context.Context, userID int64, q models.NotificationQuery) ([]models.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	all := []models.Notification{}
	err := r.read(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID != userID {
				continue
			}
			if q.After != nil && !q.After.After(n) {
				continue
			}
			if q.Before != nil && !models.CursorOf(n).After(models.Notification{CreatedAt: q.Before.CreatedAt, ID: q.Before.ID}) {
				continue
			}
			all = append(all, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return newer(all[i], all[j]) })
	if len(all) <= limit {
		return all, nil
	}
	if q.After != nil {
		// oldest rows past the cursor, still newest first
		return all[len(all)-limit:], nil
	}
	return all[:limit], nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id int64) error {
	return r.write(ctx, func(st *state) error {
		if n, ok := st.notifications[id]; ok && !n.IsRead {
			n.IsRead = true
			st.notifications[id] = n
		}
		return nil
	})
}

func (r notificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	var changed int64
	err := r.write(ctx, func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID == userID && !n.IsRead {
				n.IsRead = true
				st.notifications[id] = n
				changed++
			}
		}
		return nil
	})
	return changed, err
}

func (r notificationRepo) CountUnread(_ context.Context, userID int64) (int64, error) {
	var n int64
	err := r.read(func(st *state) error {
		for _, item := range st.notifications {
			if item.UserID == userID && !item.IsRead {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ---- users

type userRepo struct{ view }

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r userRepo) Create(ctx context.Context, u *models.User) error {
	return r.write(ctx, func(st *state) error {
		email := normalizeEmail(u.Email)
		for _, other := range st.users {
			if other.Email == email {
				return domain.ConflictError{Resource: "user", Msg: "email already registered"}
			}
		}
		u.Email = email
		u.ID = st.next("users")
		st.users[u.ID] = *u
		return nil
	})
}

func (r userRepo) GetByID(_ context.Context, id int64) (models.User, error) {
	var out models.User
	err := r.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domain.NotFoundError{Resource: "user"}
		}
		out = u
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	var out models.User
	email = normalizeEmail(email)
	err := r.read(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = u
				return nil
			}
		}
		return domain.NotFoundError{Resource: "user"}
	})
	return out, err
}

func (r userRepo) List(context.Context) ([]models.User, error) {
	out := []models.User{}
	err := r.read(func(st *state) error {
		for _, u := range st.users {
			if !u.Deleted() {
				out = append(out, u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r userRepo) Update(ctx context.Context, id int64, upd models.UserUpdate) error {
	return r.write(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return nil
		}
		if upd.FullName != nil {
			u.FullName = strings.TrimSpace(*upd.FullName)
		}
		if upd.Phone != nil {
			u.Phone = strings.TrimSpace(*upd.Phone)
		}
		if upd.ProfilePicture != nil {
			u.ProfilePicture = strings.TrimSpace(*upd.ProfilePicture)
		}
		if upd.PasswordHash != nil {
			u.PasswordHash = *upd.PasswordHash
		}
		u.UpdatedAt = r.clock()
		st.users[id] = u
		return nil
	})
}

func (r userRepo) SetVerified(ctx context.Context, id int64, verified bool) error {
	return r.write(ctx, func(st *state) error {
		if u, ok := st.users[id]; ok {
			u.IsVerified = verified
			u.UpdatedAt = r.clock()
			st.users[id] = u
		}
		return nil
	})
}

func (r userRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return r.write(ctx, func(st *state) error {
		if u, ok := st.users[id]; ok && !u.Deleted() {
			u.DeletedAt = &at
			u.UpdatedAt = r.clock()
			st.users[id] = u
		}
		return nil
	})
}

func (r userRepo) Count(context.Context) (int64, error) {
	var n int64
	err := r.read(func(st *state) error {
		for _, u := range st.users {
			if !u.Deleted() {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ---- vehicles

type vehicleRepo struct{ view }

func (r vehicleRepo) Create(ctx context.Context, v *models.Vehicle) error {
	return r.write(ctx, func(st *state) error {
		reg := utils.NormalizeCode(v.RegistrationNumber)
		for _, other := range st.vehicles {
			if other.RegistrationNumber == reg {
				return domain.ConflictError{Resource: "vehicle", Msg: "registration number already exists"}
			}
		}
		v.RegistrationNumber = reg
		v.ID = st.next("vehicles")
		st.vehicles[v.ID] = *v
		return nil
	})
}

func (r vehicleRepo) GetByID(_ context.Context, id int64) (models.Vehicle, error) {
	var out models.Vehicle
	err := r.read(func(st *state) error {
		v, ok := st.vehicles[id]
		if !ok {
			return domain.NotFoundError{Resource: "vehicle"}
		}
		out = v
		return nil
	})
	return out, err
}

func (r vehicleRepo) list(keep func(models.Vehicle) bool) ([]models.Vehicle, error) {
	out := []models.Vehicle{}
	err := r.read(func(st *state) error {
		for _, v := range st.vehicles {
			if keep(v) {
				out = append(out, v)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (r vehicleRepo) ListByOwner(_ context.Context, ownerID int64) ([]models.Vehicle, error) {
	return r.list(func(v models.Vehicle) bool { return v.OwnerID == ownerID })
}

func (r vehicleRepo) ListAll(context.Context) ([]models.Vehicle, error) {
	return r.list(func(models.Vehicle) bool { return true })
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
