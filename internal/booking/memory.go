package booking

import (
	"context"
	"sync"

	"agendafit.app/internal/checkin"
)

// InMemory implements Store over a map guarded by a mutex.
type InMemory struct {
	mu       sync.RWMutex
	bookings map[string]checkin.Booking
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{bookings: make(map[string]checkin.Booking)}
}

// Put inserts or replaces a booking.
func (s *InMemory) Put(b checkin.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = copyBooking(b)
}

func (s *InMemory) Load(ctx context.Context, id string) (checkin.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return checkin.Booking{}, ErrNotFound
	}
	return copyBooking(b), nil
}

// CompareAndSetStatus moves the booking to next only while its canonical
// status still equals expected. The legacy status column follows along.
func (s *InMemory) CompareAndSetStatus(ctx context.Context, id string, expected, next checkin.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.StatusCanonical != expected {
		return false, nil
	}
	b.StatusCanonical = next
	b.Status = string(next)
	s.bookings[id] = b
	return true, nil
}

func copyBooking(b checkin.Booking) checkin.Booking {
	if b.StudentID != nil {
		s := *b.StudentID
		b.StudentID = &s
	}
	return b
}
