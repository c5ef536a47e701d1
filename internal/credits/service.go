package credits

import (
	"context"
	"sync"
	"time"
)

// Ledger tracks class credits. Consumption is idempotent per booking until it
// is refunded; a refunded booking is debited again on its next consumption.
// Refund is not called by the check-in flow. It backs the platform's booking
// cancellation, which owns the decision to reverse a class.
type Ledger interface {
	Deposit(ctx context.Context, ownerID string, credits int64) (Account, error)
	Balance(ctx context.Context, ownerID string) (Account, error)
	Consume(ctx context.Context, req ConsumeRequest) (Consumption, error)
	Refund(ctx context.Context, bookingID string) (Consumption, error)
}

// InMemory implements Ledger with in-process concurrency safety.
type InMemory struct {
	mu       sync.Mutex
	accounts map[string]*Account
	byBook   map[string]*Consumption
	now      func() time.Time
}

var _ Ledger = (*InMemory)(nil)

// NewInMemory creates an empty ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[string]*Account),
		byBook:   make(map[string]*Consumption),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemory) Deposit(ctx context.Context, ownerID string, credits int64) (Account, error) {
	if credits <= 0 {
		return Account{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(ownerID)
	acc.Credits += credits
	acc.UpdatedAt = s.now()
	return *acc, nil
}

func (s *InMemory) Balance(ctx context.Context, ownerID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[ownerID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

func (s *InMemory) Consume(ctx context.Context, req ConsumeRequest) (Consumption, error) {
	if err := req.Validate(); err != nil {
		return Consumption{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byBook[req.BookingID]; ok && c.RefundedAt == nil {
		return *c, nil
	}

	student, ok := s.accounts[req.StudentID]
	if !ok || student.Credits < req.Credits {
		return Consumption{}, ErrInsufficientCredits
	}
	teacher := s.account(req.TeacherID)

	now := s.now()
	student.Credits -= req.Credits
	student.UpdatedAt = now
	teacher.MinutesTaught += int64(req.Minutes)
	teacher.UpdatedAt = now

	c := &Consumption{
		BookingID:     req.BookingID,
		StudentID:     req.StudentID,
		TeacherID:     req.TeacherID,
		Credits:       req.Credits,
		Minutes:       req.Minutes,
		HoursCredited: HoursFor(req.Minutes),
		NewBalance:    student.Credits,
		CreatedAt:     now,
	}
	s.byBook[req.BookingID] = c
	return *c, nil
}

func (s *InMemory) Refund(ctx context.Context, bookingID string) (Consumption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byBook[bookingID]
	if !ok {
		return Consumption{}, ErrNotFound
	}
	if c.RefundedAt != nil {
		return Consumption{}, ErrAlreadyRefunded
	}

	now := s.now()
	student := s.account(c.StudentID)
	student.Credits += c.Credits
	student.UpdatedAt = now
	teacher := s.account(c.TeacherID)
	teacher.MinutesTaught -= int64(c.Minutes)
	teacher.UpdatedAt = now

	c.RefundedAt = &now
	out := *c
	out.NewBalance = student.Credits
	return out, nil
}

// account returns the account for id, creating it empty. Caller holds mu.
func (s *InMemory) account(id string) *Account {
	acc, ok := s.accounts[id]
	if !ok {
		acc = &Account{ID: id, UpdatedAt: s.now()}
		s.accounts[id] = acc
	}
	return acc
}
