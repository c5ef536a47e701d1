package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"agendafit.app/internal/checkin"
)

// Entry is an immutable check-in audit row.
type Entry struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	ActorUserID string    `json:"actor_user_id"`
	RequestID   string    `json:"request_id,omitempty"`
	checkin.AuditRecord
}

// Fields flattens the entry for LogEvent.
func (e Entry) Fields() map[string]any {
	fields := map[string]any{
		"audit_id":   e.ID,
		"academy_id": e.AcademyID,
		"teacher_id": e.TeacherID,
		"booking_id": e.BookingID,
		"status":     string(e.Status),
		"method":     string(e.Method),
		"actor":      e.ActorUserID,
	}
	if e.Reason != nil {
		fields["reason"] = string(*e.Reason)
	}
	return fields
}

// Log appends and lists check-in audit entries.
type Log interface {
	Append(ctx context.Context, e Entry) error
	ListByBooking(ctx context.Context, bookingID string) ([]Entry, error)
}

// InMemory is an append-only Log kept in process memory.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Log = (*InMemory)(nil)

func NewInMemory() *InMemory { return &InMemory{} }

func (l *InMemory) Append(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *InMemory) ListByBooking(ctx context.Context, bookingID string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// Len returns the number of stored entries.
func (l *InMemory) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
