package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"agendafit.app/internal/credits"
)

func (s *Store) Deposit(ctx context.Context, ownerID string, n int64) (credits.Account, error) {
	if n <= 0 {
		return credits.Account{}, credits.ErrInvalidAmount
	}
	var acc credits.Account
	err := s.db.QueryRowContext(ctx, `
		insert into credit_accounts(id, credits, updated_at)
		values ($1,$2,now())
		on conflict (id) do update
		set credits = credit_accounts.credits + excluded.credits, updated_at = now()
		returning id, credits, minutes_taught, updated_at
	`, ownerID, n).Scan(&acc.ID, &acc.Credits, &acc.MinutesTaught, &acc.UpdatedAt)
	if err != nil {
		return credits.Account{}, err
	}
	return acc, nil
}

func (s *Store) Balance(ctx context.Context, ownerID string) (credits.Account, error) {
	var acc credits.Account
	err := s.db.QueryRowContext(ctx, `
		select id, credits, minutes_taught, updated_at from credit_accounts where id=$1
	`, ownerID).Scan(&acc.ID, &acc.Credits, &acc.MinutesTaught, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return credits.Account{}, credits.ErrNotFound
	}
	if err != nil {
		return credits.Account{}, err
	}
	return acc, nil
}

func (s *Store) Consume(ctx context.Context, req credits.ConsumeRequest) (credits.Consumption, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return credits.Consumption{}, err
	}
	defer func() { _ = tx.Rollback() }()

	c, err := consume(ctx, tx, req)
	if err != nil {
		return credits.Consumption{}, err
	}
	if err := tx.Commit(); err != nil {
		return credits.Consumption{}, err
	}
	return c, nil
}

// consume debits the student and credits the teacher inside tx. A booking
// that was already consumed returns the stored row unchanged; a refunded one
// is debited again and its row overwritten.
func consume(ctx context.Context, tx *sql.Tx, req credits.ConsumeRequest) (credits.Consumption, error) {
	if err := req.Validate(); err != nil {
		return credits.Consumption{}, err
	}

	existing, err := loadConsumption(ctx, tx, req.BookingID, false)
	if err == nil && existing.RefundedAt == nil {
		return existing, nil
	}
	if err != nil && !errors.Is(err, credits.ErrNotFound) {
		return credits.Consumption{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into credit_accounts(id) values ($1) on conflict do nothing
	`, req.TeacherID); err != nil {
		return credits.Consumption{}, err
	}

	// Lock both accounts in a stable order to avoid deadlocks
	var studentBal int64
	for _, id := range sorted(req.StudentID, req.TeacherID) {
		var bal int64
		err := tx.QueryRowContext(ctx, `select credits from credit_accounts where id=$1 for update`, id).Scan(&bal)
		if errors.Is(err, sql.ErrNoRows) {
			return credits.Consumption{}, credits.ErrInsufficientCredits
		}
		if err != nil {
			return credits.Consumption{}, err
		}
		if id == req.StudentID {
			studentBal = bal
		}
	}
	if studentBal < req.Credits {
		return credits.Consumption{}, credits.ErrInsufficientCredits
	}

	if _, err := tx.ExecContext(ctx, `
		update credit_accounts set credits = credits - $2, updated_at = now() where id=$1
	`, req.StudentID, req.Credits); err != nil {
		return credits.Consumption{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update credit_accounts set minutes_taught = minutes_taught + $2, updated_at = now() where id=$1
	`, req.TeacherID, req.Minutes); err != nil {
		return credits.Consumption{}, err
	}

	c := credits.Consumption{
		BookingID:     req.BookingID,
		StudentID:     req.StudentID,
		TeacherID:     req.TeacherID,
		Credits:       req.Credits,
		Minutes:       req.Minutes,
		HoursCredited: credits.HoursFor(req.Minutes),
		NewBalance:    studentBal - req.Credits,
	}
	if err := tx.QueryRowContext(ctx, `
		insert into credit_consumptions(booking_id, student_id, teacher_id, credits, minutes, hours_credited, new_balance)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (booking_id) do update
		set student_id = excluded.student_id, teacher_id = excluded.teacher_id,
			credits = excluded.credits, minutes = excluded.minutes,
			hours_credited = excluded.hours_credited, new_balance = excluded.new_balance,
			created_at = now(), refunded_at = null
		returning created_at
	`, c.BookingID, c.StudentID, c.TeacherID, c.Credits, c.Minutes, c.HoursCredited, c.NewBalance).Scan(&c.CreatedAt); err != nil {
		return credits.Consumption{}, err
	}
	return c, nil
}

func (s *Store) Refund(ctx context.Context, bookingID string) (credits.Consumption, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return credits.Consumption{}, err
	}
	defer func() { _ = tx.Rollback() }()

	c, err := loadConsumption(ctx, tx, bookingID, true)
	if err != nil {
		return credits.Consumption{}, err
	}
	if c.RefundedAt != nil {
		return credits.Consumption{}, credits.ErrAlreadyRefunded
	}

	if err := tx.QueryRowContext(ctx, `
		update credit_accounts set credits = credits + $2, updated_at = now() where id=$1 returning credits
	`, c.StudentID, c.Credits).Scan(&c.NewBalance); err != nil {
		return credits.Consumption{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update credit_accounts set minutes_taught = minutes_taught - $2, updated_at = now() where id=$1
	`, c.TeacherID, c.Minutes); err != nil {
		return credits.Consumption{}, err
	}
	var refunded time.Time
	if err := tx.QueryRowContext(ctx, `
		update credit_consumptions set refunded_at = now() where booking_id=$1 returning refunded_at
	`, bookingID).Scan(&refunded); err != nil {
		return credits.Consumption{}, err
	}
	c.RefundedAt = &refunded

	if err := tx.Commit(); err != nil {
		return credits.Consumption{}, err
	}
	return c, nil
}

func loadConsumption(ctx context.Context, tx *sql.Tx, bookingID string, lock bool) (credits.Consumption, error) {
	query := `
		select booking_id, student_id, teacher_id, credits, minutes, hours_credited, new_balance, created_at, refunded_at
		from credit_consumptions where booking_id=$1`
	if lock {
		query += ` for update`
	}
	var (
		c        credits.Consumption
		refunded sql.NullTime
	)
	err := tx.QueryRowContext(ctx, query, bookingID).Scan(
		&c.BookingID, &c.StudentID, &c.TeacherID, &c.Credits, &c.Minutes, &c.HoursCredited, &c.NewBalance, &c.CreatedAt, &refunded)
	if errors.Is(err, sql.ErrNoRows) {
		return credits.Consumption{}, credits.ErrNotFound
	}
	if err != nil {
		return credits.Consumption{}, err
	}
	if refunded.Valid {
		t := refunded.Time
		c.RefundedAt = &t
	}
	return c, nil
}
