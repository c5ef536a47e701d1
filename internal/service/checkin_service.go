package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"agendafit.app/internal/audit"
	"agendafit.app/internal/booking"
	"agendafit.app/internal/checkin"
	"agendafit.app/internal/credits"
	"agendafit.app/internal/events"
	"agendafit.app/internal/ids"
	"agendafit.app/internal/obs"
)

// Store is the persistence the check-in flow needs. Both the Postgres and the
// in-memory stores satisfy it.
type Store interface {
	Load(ctx context.Context, id string) (checkin.Booking, error)
	audit.Log
	booking.Completer
	Balance(ctx context.Context, ownerID string) (credits.Account, error)
}

// CheckinResult is what one check-in attempt produced.
type CheckinResult struct {
	Decision    checkin.Decision
	Booking     checkin.Booking
	Audit       *audit.Entry
	Consumption *credits.Consumption
}

// Granted reports whether the booking moved to COMPLETED.
func (r CheckinResult) Granted() bool { return r.Decision.Outcome.Authorized() }

type CheckinService struct {
	store             Store
	publisher         events.Publisher
	logger            *zap.Logger
	creditsPerCheckin int64
	now               func() time.Time
}

type Option func(*CheckinService)

func WithPublisher(p events.Publisher) Option {
	return func(s *CheckinService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *CheckinService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCreditsPerCheckin sets how many class credits a grant debits. Zero
// disables consumption.
func WithCreditsPerCheckin(n int64) Option {
	return func(s *CheckinService) {
		if n >= 0 {
			s.creditsPerCheckin = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *CheckinService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewCheckinService(store Store, opts ...Option) *CheckinService {
	s := &CheckinService{
		store:             store,
		publisher:         events.Nop{},
		logger:            zap.NewNop(),
		creditsPerCheckin: 1,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkin authorizes the attempt and applies its effects. Denials are returned
// in the result, not as errors.
func (s *CheckinService) Checkin(ctx context.Context, bookingID string, user checkin.User, method checkin.Method) (CheckinResult, error) {
	if !method.Valid() {
		return CheckinResult{}, ErrInvalidMethod
	}
	b, err := s.load(ctx, bookingID)
	if errors.Is(err, ErrNotFound) && !checkin.IsAdminRole(user.Role) {
		obs.RecordCheckinDecision(string(checkin.DenialUnauthorized))
		s.logger.Info("check-in denied",
			zap.String("booking_id", bookingID),
			zap.String("user_id", user.ID),
			zap.String("code", string(checkin.DenialUnauthorized)))
		return CheckinResult{Decision: checkin.Unauthorized()}, nil
	}
	if err != nil {
		return CheckinResult{}, err
	}
	req := checkin.Request{Method: method}

	decision := checkin.Authorize(b, user, req)
	if !decision.Outcome.Authorized() {
		return s.deny(ctx, b, user, decision)
	}

	entry := s.entry(ctx, user, *decision.Audit)
	completion := booking.Completion{
		BookingID: b.ID,
		Expected:  b.StatusCanonical,
		Next:      decision.Outcome.NewStatus,
		Audit:     entry,
	}
	if b.HasStudent() && s.creditsPerCheckin > 0 {
		completion.Consume = &credits.ConsumeRequest{
			BookingID: b.ID,
			StudentID: *b.StudentID,
			TeacherID: b.TeacherID,
			Credits:   s.creditsPerCheckin,
			Minutes:   b.DurationMinutes,
		}
	}

	res, err := s.store.Complete(ctx, completion)
	switch {
	case errors.Is(err, booking.ErrStatusConflict):
		return s.retryAfterConflict(ctx, bookingID, user, req)
	case errors.Is(err, credits.ErrInsufficientCredits):
		obs.RecordCheckinDecision("INSUFFICIENT_CREDITS")
		s.logger.Info("check-in refused: insufficient credits",
			zap.String("booking_id", b.ID), zap.String("user_id", user.ID))
		return CheckinResult{}, ErrInsufficientCredits
	case errors.Is(err, booking.ErrNotFound):
		return CheckinResult{}, ErrNotFound
	case err != nil:
		return CheckinResult{}, fmt.Errorf("complete booking %s: %w", b.ID, err)
	}

	b.StatusCanonical = completion.Next
	b.Status = string(completion.Next)

	obs.RecordCheckinDecision(string(checkin.AuditGranted))
	if res.Consumption != nil {
		obs.RecordCreditsConsumed(res.Consumption.Credits)
	}
	_ = audit.LogEvent(ctx, "booking.checkin.granted", entry.Fields())
	s.logger.Info("check-in granted",
		zap.String("booking_id", b.ID),
		zap.String("user_id", user.ID),
		zap.String("method", string(method)))

	s.publish(ctx, b, entry, res.Consumption)

	return CheckinResult{
		Decision:    decision,
		Booking:     b,
		Audit:       &entry,
		Consumption: res.Consumption,
	}, nil
}

// retryAfterConflict re-evaluates against the committed state once. The
// usual outcome is ALREADY_COMPLETED for the race loser.
func (s *CheckinService) retryAfterConflict(ctx context.Context, bookingID string, user checkin.User, req checkin.Request) (CheckinResult, error) {
	fresh, err := s.load(ctx, bookingID)
	if err != nil {
		return CheckinResult{}, err
	}
	decision := checkin.Authorize(fresh, user, req)
	if decision.Outcome.Authorized() {
		return CheckinResult{}, ErrConflict
	}
	return s.deny(ctx, fresh, user, decision)
}

func (s *CheckinService) deny(ctx context.Context, b checkin.Booking, user checkin.User, decision checkin.Decision) (CheckinResult, error) {
	code := decision.Outcome.Code
	obs.RecordCheckinDecision(string(code))
	s.logger.Info("check-in denied",
		zap.String("booking_id", b.ID),
		zap.String("user_id", user.ID),
		zap.String("code", string(code)))

	out := CheckinResult{Decision: decision}
	if decision.Audit == nil {
		return out, nil
	}
	entry := s.entry(ctx, user, *decision.Audit)
	if err := s.store.Append(ctx, entry); err != nil {
		return CheckinResult{}, fmt.Errorf("append audit: %w", err)
	}
	_ = audit.LogEvent(ctx, "booking.checkin.denied", entry.Fields())
	out.Audit = &entry
	return out, nil
}

func (s *CheckinService) entry(ctx context.Context, user checkin.User, rec checkin.AuditRecord) audit.Entry {
	now := s.now()
	return audit.Entry{
		ID:          ids.NewAt(now),
		OccurredAt:  now,
		ActorUserID: user.ID,
		RequestID:   audit.RequestIDFromContext(ctx),
		AuditRecord: rec,
	}
}

func (s *CheckinService) publish(ctx context.Context, b checkin.Booking, entry audit.Entry, cons *credits.Consumption) {
	evt := events.CheckinEvent{
		Type:        events.TypeCheckinCompleted,
		BookingID:   b.ID,
		AcademyID:   b.FranchiseID,
		TeacherID:   b.TeacherID,
		StudentID:   b.StudentID,
		Method:      string(entry.Method),
		ActorUserID: entry.ActorUserID,
		RequestID:   entry.RequestID,
		OccurredAt:  entry.OccurredAt,
	}
	if cons != nil {
		evt.HoursCredited = cons.HoursCredited
		balance := cons.NewBalance
		evt.NewBalance = &balance
	}
	// The booking is already committed; a failed publish is logged only.
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish check-in event failed",
			zap.String("booking_id", b.ID), zap.Error(err))
	}
}

// History lists the audit trail of a booking for its parties and admins. Only
// admins learn that a booking does not exist.
func (s *CheckinService) History(ctx context.Context, bookingID string, user checkin.User) ([]audit.Entry, error) {
	b, err := s.load(ctx, bookingID)
	if errors.Is(err, ErrNotFound) && !checkin.IsAdminRole(user.Role) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if !checkin.IsParty(b, user) {
		return nil, ErrForbidden
	}
	entries, err := s.store.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, nil
}

// Credits returns a credit balance to its owner or to an admin.
func (s *CheckinService) Credits(ctx context.Context, ownerID string, user checkin.User) (credits.Account, error) {
	if ownerID == "" {
		return credits.Account{}, ErrNotFound
	}
	if user.ID != ownerID && !checkin.IsAdminRole(user.Role) {
		return credits.Account{}, ErrForbidden
	}
	acc, err := s.store.Balance(ctx, ownerID)
	if errors.Is(err, credits.ErrNotFound) {
		return credits.Account{}, ErrNotFound
	}
	if err != nil {
		return credits.Account{}, fmt.Errorf("balance: %w", err)
	}
	return acc, nil
}

func (s *CheckinService) load(ctx context.Context, id string) (checkin.Booking, error) {
	b, err := s.store.Load(ctx, id)
	if errors.Is(err, booking.ErrNotFound) {
		return checkin.Booking{}, ErrNotFound
	}
	if err != nil {
		return checkin.Booking{}, fmt.Errorf("load booking %s: %w", id, err)
	}
	return b, nil
}
