package checkin

import (
	"testing"

	"pgregory.net/rapid"
)

var (
	allStatuses = []Status{StatusAvailable, StatusPaid, StatusDone, StatusCanceled, StatusCompleted}
	allMethods  = []Method{MethodQRCode, MethodManual}
	nonAdmin    = []Role{RoleTeacher, RoleStudent, "GUEST", "", "admin", "franquia"}
)

func genID() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Y][0-9]{1,3}`)
}

func genBooking(status *rapid.Generator[Status]) *rapid.Generator[Booking] {
	return rapid.Custom(func(t *rapid.T) Booking {
		b := Booking{
			ID:              genID().Draw(t, "id"),
			TeacherID:       genID().Draw(t, "teacher"),
			FranchiseID:     genID().Draw(t, "franchise"),
			StatusCanonical: status.Draw(t, "status"),
			DurationMinutes: rapid.IntRange(15, 180).Draw(t, "duration"),
		}
		b.Status = string(b.StatusCanonical)
		if rapid.Bool().Draw(t, "claimed") {
			s := genID().Draw(t, "student")
			b.StudentID = &s
		}
		return b
	})
}

func anyStatus() *rapid.Generator[Status] { return rapid.SampledFrom(allStatuses) }
func paidOnly() *rapid.Generator[Status]  { return rapid.Just(StatusPaid) }

func genRequest() *rapid.Generator[Request] {
	return rapid.Custom(func(t *rapid.T) Request {
		return Request{Method: rapid.SampledFrom(allMethods).Draw(t, "method")}
	})
}

func TestPropertyOwnershipGate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := genBooking(anyStatus()).Draw(t, "booking")
		u := User{
			ID:   rapid.StringMatching(`Z[0-9]{1,3}`).Draw(t, "user"),
			Role: rapid.SampledFrom(nonAdmin).Draw(t, "role"),
		}
		req := genRequest().Draw(t, "req")

		d := Authorize(b, u, req)
		if d.Outcome.Code != DenialUnauthorized {
			t.Fatalf("expected UNAUTHORIZED, got %+v", d.Outcome)
		}
		if d.BookingMutated {
			t.Fatal("unauthorized attempt mutated booking")
		}
	})
}

func TestPropertyPartyGrant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := genBooking(paidOnly()).Draw(t, "booking")
		ids := []string{b.TeacherID}
		if b.StudentID != nil {
			ids = append(ids, *b.StudentID)
		}
		u := User{
			ID:   rapid.SampledFrom(ids).Draw(t, "user"),
			Role: rapid.SampledFrom(append(nonAdmin, AdminRoles...)).Draw(t, "role"),
		}

		d := Authorize(b, u, genRequest().Draw(t, "req"))
		if !d.Outcome.Authorized() || d.Outcome.NewStatus != StatusCompleted {
			t.Fatalf("expected grant to COMPLETED, got %+v", d.Outcome)
		}
		if !d.BookingMutated {
			t.Fatal("grant must mutate booking")
		}
	})
}

func TestPropertyAdminOverride(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := genBooking(paidOnly()).Draw(t, "booking")
		u := User{
			ID:   rapid.String().Draw(t, "user"),
			Role: rapid.SampledFrom(AdminRoles).Draw(t, "role"),
		}

		d := Authorize(b, u, genRequest().Draw(t, "req"))
		if !d.Outcome.Authorized() {
			t.Fatalf("admin must be granted, got %+v", d.Outcome)
		}
	})
}

func TestPropertyAuditOnDenialExceptReplay(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := genBooking(anyStatus()).Draw(t, "booking")
		u := User{
			ID:   rapid.SampledFrom([]string{b.TeacherID, "Z1"}).Draw(t, "user"),
			Role: rapid.SampledFrom(append(nonAdmin, AdminRoles...)).Draw(t, "role"),
		}
		req := genRequest().Draw(t, "req")

		d := Authorize(b, u, req)
		switch d.Outcome.Code {
		case DenialAlreadyCompleted:
			if d.Audit != nil {
				t.Fatalf("replay produced audit record: %+v", d.Audit)
			}
		case DenialUnauthorized, DenialInvalidStatus:
			a := d.Audit
			if a == nil {
				t.Fatalf("denial %s without audit record", d.Outcome.Code)
			}
			if a.Status != AuditDenied || a.Reason == nil || *a.Reason != d.Outcome.Code {
				t.Fatalf("audit does not match denial: %+v", a)
			}
			if a.BookingID != b.ID || a.Method != req.Method || a.TeacherID != b.TeacherID || a.AcademyID != b.FranchiseID {
				t.Fatalf("audit fields not copied: %+v", a)
			}
		case "":
			if d.Audit == nil || d.Audit.Status != AuditGranted || d.Audit.Reason != nil {
				t.Fatalf("grant audit malformed: %+v", d.Audit)
			}
		default:
			t.Fatalf("unknown denial code %q", d.Outcome.Code)
		}
	})
}

func TestPropertyIdempotence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := genBooking(paidOnly()).Draw(t, "booking")
		u := User{ID: b.TeacherID, Role: RoleTeacher}
		req := genRequest().Draw(t, "req")

		first := Authorize(b, u, req)
		if !first.Outcome.Authorized() {
			t.Fatalf("first call should grant, got %+v", first.Outcome)
		}
		b.StatusCanonical = first.Outcome.NewStatus

		second := Authorize(b, u, req)
		if second.Outcome.Code != DenialAlreadyCompleted {
			t.Fatalf("second call should be a replay, got %+v", second.Outcome)
		}
		if second.BookingMutated || second.Audit != nil {
			t.Fatalf("replay must have no side effects: %+v", second)
		}
	})
}

func TestPropertyMethodDoesNotAffectOutcome(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := genBooking(anyStatus()).Draw(t, "booking")
		u := User{
			ID:   rapid.SampledFrom([]string{b.TeacherID, "Z1"}).Draw(t, "user"),
			Role: rapid.SampledFrom(append(nonAdmin, AdminRoles...)).Draw(t, "role"),
		}

		qr := Authorize(b, u, Request{Method: MethodQRCode})
		manual := Authorize(b, u, Request{Method: MethodManual})
		if qr.Outcome != manual.Outcome || qr.BookingMutated != manual.BookingMutated {
			t.Fatalf("method changed outcome: %+v vs %+v", qr.Outcome, manual.Outcome)
		}
	})
}
