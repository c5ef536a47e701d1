// Package memory wires the in-memory booking, audit and credit stores into one
// store whose completions are atomic. Used when no DSN is configured and in tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"agendafit.app/internal/audit"
	"agendafit.app/internal/booking"
	"agendafit.app/internal/checkin"
	"agendafit.app/internal/credits"
)

type Store struct {
	mu       sync.Mutex
	bookings *booking.InMemory
	audit    *audit.InMemory
	credits  *credits.InMemory
}

var (
	_ booking.Store     = (*Store)(nil)
	_ booking.Completer = (*Store)(nil)
	_ audit.Log         = (*Store)(nil)
	_ credits.Ledger    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		bookings: booking.NewInMemory(),
		audit:    audit.NewInMemory(),
		credits:  credits.NewInMemory(),
	}
}

// PutBooking seeds or replaces a booking.
func (s *Store) PutBooking(b checkin.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings.Put(b)
}

func (s *Store) Load(ctx context.Context, id string) (checkin.Booking, error) {
	return s.bookings.Load(ctx, id)
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next checkin.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings.CompareAndSetStatus(ctx, id, expected, next)
}

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	return s.audit.Append(ctx, e)
}

func (s *Store) ListByBooking(ctx context.Context, bookingID string) ([]audit.Entry, error) {
	return s.audit.ListByBooking(ctx, bookingID)
}

// AuditLen reports how many audit entries were written.
func (s *Store) AuditLen() int { return s.audit.Len() }

func (s *Store) Deposit(ctx context.Context, ownerID string, n int64) (credits.Account, error) {
	return s.credits.Deposit(ctx, ownerID, n)
}

func (s *Store) Balance(ctx context.Context, ownerID string) (credits.Account, error) {
	return s.credits.Balance(ctx, ownerID)
}

func (s *Store) Consume(ctx context.Context, req credits.ConsumeRequest) (credits.Consumption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits.Consume(ctx, req)
}

func (s *Store) Refund(ctx context.Context, bookingID string) (credits.Consumption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits.Refund(ctx, bookingID)
}

// Complete applies the status move, the credit consumption and the audit
// entry as one unit. A failing consumption leaves the booking untouched.
func (s *Store) Complete(ctx context.Context, c booking.Completion) (booking.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bookings.Load(ctx, c.BookingID)
	if err != nil {
		return booking.Result{}, err
	}
	if b.StatusCanonical != c.Expected {
		return booking.Result{}, booking.ErrStatusConflict
	}

	var res booking.Result
	if c.Consume != nil {
		cons, err := s.credits.Consume(ctx, *c.Consume)
		if err != nil {
			return booking.Result{}, err
		}
		res.Consumption = &cons
	}

	ok, err := s.bookings.CompareAndSetStatus(ctx, c.BookingID, c.Expected, c.Next)
	if err == nil && !ok {
		err = booking.ErrStatusConflict
	}
	if err != nil {
		if res.Consumption != nil {
			if _, rerr := s.credits.Refund(ctx, c.BookingID); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
		return booking.Result{}, err
	}

	if err := s.audit.Append(ctx, c.Audit); err != nil {
		return booking.Result{}, err
	}
	return res, nil
}
