package audit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"agendafit.app/internal/auth"
	"agendafit.app/internal/checkin"
	"agendafit.app/internal/obs"
)

func TestLogEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := obs.SetLogger(zap.New(core))
	defer restore()

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithUser(ctx, checkin.User{ID: "user-42", Role: checkin.RoleAdmin})

	if err := LogEvent(ctx, "audit.test", map[string]any{"foo": "bar"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "audit" {
		t.Fatalf("unexpected type: %v", fields["type"])
	}
	if fields["event"] != "audit.test" {
		t.Fatalf("unexpected event: %v", fields["event"])
	}
	if fields["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", fields["request_id"])
	}
	if fields["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", fields["user_id"])
	}
	extra, ok := fields["fields"].(map[string]any)
	if !ok || extra["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", fields["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestInMemoryListByBooking(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	reason := checkin.DenialInvalidStatus

	_ = l.Append(ctx, Entry{ID: "2", OccurredAt: base.Add(time.Minute), AuditRecord: checkin.AuditRecord{BookingID: "B1", Status: checkin.AuditGranted}})
	_ = l.Append(ctx, Entry{ID: "1", OccurredAt: base, AuditRecord: checkin.AuditRecord{BookingID: "B1", Status: checkin.AuditDenied, Reason: &reason}})
	_ = l.Append(ctx, Entry{ID: "3", OccurredAt: base, AuditRecord: checkin.AuditRecord{BookingID: "B2"}})

	got, err := l.ListByBooking(ctx, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if l.Len() != 3 {
		t.Fatalf("unexpected length: %d", l.Len())
	}
	if got[0].Fields()["reason"] != "INVALID_STATUS" {
		t.Fatalf("reason not flattened: %v", got[0].Fields())
	}
	if _, ok := got[1].Fields()["reason"]; ok {
		t.Fatal("granted entry must not carry a reason")
	}
}
