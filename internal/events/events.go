// Package events carries check-in outcomes to downstream consumers.
package events

import (
	"context"
	"errors"
	"time"
)

// TypeCheckinCompleted is emitted once per granted check-in.
const TypeCheckinCompleted = "booking.checkin.completed"

// CheckinEvent is the payload published after a booking reaches COMPLETED.
type CheckinEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	AcademyID     string    `json:"academy_id"`
	TeacherID     string    `json:"teacher_id"`
	StudentID     *string   `json:"student_id"`
	Method        string    `json:"method"`
	ActorUserID   string    `json:"actor_user_id"`
	RequestID     string    `json:"request_id,omitempty"`
	HoursCredited float64   `json:"hours_credited,omitempty"`
	NewBalance    *int64    `json:"new_balance,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt CheckinEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, CheckinEvent) error { return nil }

// Fanout publishes to every wrapped publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt CheckinEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
