package credits

import (
	"errors"
	"time"
)

// Account holds a participant's balances. Students spend Credits (class units);
// teachers accumulate MinutesTaught.
type Account struct {
	ID            string    `json:"id"`
	Credits       int64     `json:"credits"`
	MinutesTaught int64     `json:"minutes_taught"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HoursTaught converts the teacher balance to hours.
func (a Account) HoursTaught() float64 { return float64(a.MinutesTaught) / 60 }

// ConsumeRequest debits a student and credits the booking's teacher.
type ConsumeRequest struct {
	BookingID string
	StudentID string
	TeacherID string
	Credits   int64 // class units debited from the student
	Minutes   int   // booking duration credited to the teacher
}

// Consumption is the ledger effect of one completed booking.
type Consumption struct {
	BookingID     string     `json:"booking_id"`
	StudentID     string     `json:"student_id"`
	TeacherID     string     `json:"teacher_id"`
	Credits       int64      `json:"credits"`
	Minutes       int        `json:"minutes"`
	HoursCredited float64    `json:"hours_credited"`
	NewBalance    int64      `json:"new_balance"`
	CreatedAt     time.Time  `json:"created_at"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

var (
	ErrNotFound            = errors.New("credits: not found")
	ErrInsufficientCredits = errors.New("credits: insufficient credits")
	ErrInvalidAmount       = errors.New("credits: invalid amount (must be > 0)")
	ErrAlreadyRefunded     = errors.New("credits: consumption already refunded")
	ErrInvalidRequest      = errors.New("credits: booking, student and teacher are required")
)

// Validate checks the request shape before any balance is touched.
func (r ConsumeRequest) Validate() error {
	if r.BookingID == "" || r.StudentID == "" || r.TeacherID == "" {
		return ErrInvalidRequest
	}
	if r.Credits <= 0 || r.Minutes < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// HoursFor converts a booking duration to credited hours.
func HoursFor(minutes int) float64 { return float64(minutes) / 60 }
