// Package checkin decides whether a booking check-in is allowed and what the
// caller has to persist as a result. It performs no I/O.
package checkin

import "fmt"

const (
	msgUnauthorized     = "Você não tem permissão para fazer check-in neste agendamento"
	msgAlreadyCompleted = "Check-in já foi realizado para este agendamento"
	msgInvalidStatus    = "Status do agendamento inválido para check-in. Status atual: %s"
)

// Authorize evaluates a check-in attempt. Checks run in a fixed order and the
// first failing one decides: ownership, replay, status.
func Authorize(b Booking, u User, req Request) Decision {
	if !IsParty(b, u) {
		return deny(b, req, DenialUnauthorized, msgUnauthorized, true)
	}
	if alreadyCompleted(b) {
		// Replays are not audited.
		return deny(b, req, DenialAlreadyCompleted, msgAlreadyCompleted, false)
	}
	if b.StatusCanonical != StatusPaid {
		return deny(b, req, DenialInvalidStatus, fmt.Sprintf(msgInvalidStatus, b.StatusCanonical), true)
	}
	return Decision{
		Outcome:        Outcome{NewStatus: StatusCompleted},
		Audit:          auditRecord(b, req, AuditGranted, nil),
		BookingMutated: true,
	}
}

// Unauthorized is the ownership denial without an audit record, for callers
// outside the admin set acting on a booking id that does not exist. It is
// indistinguishable from the denial for an existing booking.
func Unauthorized() Decision {
	return Decision{Outcome: Outcome{Code: DenialUnauthorized, Message: msgUnauthorized}}
}

// IsParty reports whether u may act on b: as its teacher, its student or an admin.
func IsParty(b Booking, u User) bool {
	if IsAdminRole(u.Role) {
		return true
	}
	if u.ID == "" {
		return false
	}
	if u.ID == b.TeacherID {
		return true
	}
	return b.StudentID != nil && u.ID == *b.StudentID
}

// DONE and COMPLETED are both treated as terminal for replay detection.
func alreadyCompleted(b Booking) bool {
	if b.StatusCanonical == StatusDone || b.StatusCanonical == StatusCompleted {
		return true
	}
	return legacyCompleted(b.Status)
}

// legacyCompleted covers rows written before status_canonical existed.
// Remove once legacy statuses are migrated.
func legacyCompleted(status string) bool {
	return status == string(StatusCompleted)
}

func deny(b Booking, req Request, code DenialCode, msg string, audited bool) Decision {
	d := Decision{Outcome: Outcome{Code: code, Message: msg}}
	if audited {
		reason := code
		d.Audit = auditRecord(b, req, AuditDenied, &reason)
	}
	return d
}

func auditRecord(b Booking, req Request, status AuditStatus, reason *DenialCode) *AuditRecord {
	return &AuditRecord{
		AcademyID: b.FranchiseID,
		TeacherID: b.TeacherID,
		BookingID: b.ID,
		Status:    status,
		Reason:    reason,
		Method:    req.Method,
	}
}
