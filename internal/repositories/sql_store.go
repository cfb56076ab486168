package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loadmatch/internal/domain"

	"github.com/go-sql-driver/mysql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) Trips() TripRepository                 { return TripRepo{Q: s.DB} }
func (s *SQLStore) Bookings() BookingRepository           { return BookingRepo{Q: s.DB} }
func (s *SQLStore) Notifications() NotificationRepository { return NotificationRepo{Q: s.DB} }
func (s *SQLStore) Users() UserRepository                 { return UserRepo{Q: s.DB} }
func (s *SQLStore) Vehicles() VehicleRepository           { return VehicleRepo{Q: s.DB} }

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("database not connected")
	}
	return s.DB.PingContext(ctx)
}

// WithTx begins a transaction, rolls back unless fn succeeds and commit goes through.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Repos) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.InternalError{Msg: "begin transaction", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(sqlTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.InternalError{Msg: "commit transaction", Err: err}
	}
	committed = true
	return nil
}

type sqlTx struct {
	q Querier
}

func (t sqlTx) Trips() TripRepository                 { return TripRepo{Q: t.q} }
func (t sqlTx) Bookings() BookingRepository           { return BookingRepo{Q: t.q} }
func (t sqlTx) Notifications() NotificationRepository { return NotificationRepo{Q: t.q} }
func (t sqlTx) Users() UserRepository                 { return UserRepo{Q: t.q} }
func (t sqlTx) Vehicles() VehicleRepository           { return VehicleRepo{Q: t.q} }

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: resource, Err: err}
	}
	return domain.InternalError{Msg: "query " + resource, Err: err}
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
