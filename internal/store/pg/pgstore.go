package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"agendafit.app/internal/audit"
	"agendafit.app/internal/booking"
	"agendafit.app/internal/checkin"
	"agendafit.app/internal/credits"
)

type Store struct {
	db *sql.DB
}

var (
	_ booking.Store     = (*Store)(nil)
	_ booking.Completer = (*Store)(nil)
	_ audit.Log         = (*Store)(nil)
	_ credits.Ledger    = (*Store)(nil)
)

// Open connects through the pgx stdlib driver.
func Open(dsn string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Load(ctx context.Context, id string) (checkin.Booking, error) {
	var (
		b         checkin.Booking
		student   sql.NullString
		canonical string
		date      sql.NullTime
		startAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, teacher_id, student_id, franchise_id, status, status_canonical, date, start_at, duration
		from bookings where id=$1
	`, id).Scan(&b.ID, &b.TeacherID, &student, &b.FranchiseID, &b.Status, &canonical, &date, &startAt, &b.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return checkin.Booking{}, booking.ErrNotFound
	}
	if err != nil {
		return checkin.Booking{}, err
	}
	if student.Valid {
		b.StudentID = &student.String
	}
	if date.Valid {
		b.Date = date.Time
	}
	if startAt.Valid {
		b.StartAt = startAt.Time
	}
	b.StatusCanonical = checkin.Status(canonical)
	if !b.StatusCanonical.Valid() {
		return checkin.Booking{}, fmt.Errorf("booking %s: unknown status_canonical %q", id, canonical)
	}
	return b, nil
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next checkin.Status) (bool, error) {
	return compareAndSet(ctx, s.db, id, expected, next)
}

// compareAndSet moves status_canonical (and the legacy column) only while the
// row still holds expected.
func compareAndSet(ctx context.Context, q execer, id string, expected, next checkin.Status) (bool, error) {
	res, err := q.ExecContext(ctx, `
		update bookings set status_canonical=$3, status=$3, updated_at=now()
		where id=$1 and status_canonical=$2
	`, id, string(expected), string(next))
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	var one int
	err = q.QueryRowContext(ctx, `select 1 from bookings where id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, booking.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// Complete runs the grant in one serializable transaction: conditional status
// update, credit consumption, audit insert.
func (s *Store) Complete(ctx context.Context, c booking.Completion) (booking.Result, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return booking.Result{}, mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := compareAndSet(ctx, tx, c.BookingID, c.Expected, c.Next)
	if err != nil {
		return booking.Result{}, err
	}
	if !ok {
		return booking.Result{}, booking.ErrStatusConflict
	}

	var res booking.Result
	if c.Consume != nil {
		cons, err := consume(ctx, tx, *c.Consume)
		if err != nil {
			return booking.Result{}, mapErr(err)
		}
		res.Consumption = &cons
	}

	if err := appendAudit(ctx, tx, c.Audit); err != nil {
		return booking.Result{}, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return booking.Result{}, mapErr(err)
	}
	return res, nil
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// mapErr turns serialization failures into a status conflict; the caller
// re-reads the booking and reports the committed winner.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return booking.ErrStatusConflict
		}
	}
	return err
}

// --- helpers ---
func sorted(a, b string) []string {
	switch {
	case a == b:
		return []string{a}
	case a < b:
		return []string{a, b}
	default:
		return []string{b, a}
	}
}
