// Package booking holds the booking persistence contract used by check-in.
package booking

import (
	"context"
	"errors"

	"agendafit.app/internal/audit"
	"agendafit.app/internal/checkin"
	"agendafit.app/internal/credits"
)

var (
	ErrNotFound = errors.New("booking: not found")
	// ErrStatusConflict means the booking left the expected status before the
	// conditional update ran.
	ErrStatusConflict = errors.New("booking: status changed concurrently")
)

// Store loads bookings and moves their status with compare-and-set semantics.
type Store interface {
	Load(ctx context.Context, id string) (checkin.Booking, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next checkin.Status) (bool, error)
}

// Completion is everything a granted check-in commits as one unit.
type Completion struct {
	BookingID string
	Expected  checkin.Status
	Next      checkin.Status
	Audit     audit.Entry
	Consume   *credits.ConsumeRequest // nil when nothing is charged
}

// Result is what a committed completion produced.
type Result struct {
	Consumption *credits.Consumption
}

// Completer commits a Completion atomically. It returns ErrStatusConflict when
// the booking is no longer in Expected, and the ledger's error when the
// consumption fails; in both cases nothing is persisted.
type Completer interface {
	Complete(ctx context.Context, c Completion) (Result, error)
}
