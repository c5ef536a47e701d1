package checkin

import (
	"strings"
	"time"
)

// Status is the canonical booking lifecycle state.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusPaid      Status = "PAID"
	StatusDone      Status = "DONE"
	StatusCanceled  Status = "CANCELED"
	StatusCompleted Status = "COMPLETED"
)

// Valid reports whether s is one of the known canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPaid, StatusDone, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

// Role is the acting user's role as carried by the bearer token.
type Role string

const (
	RoleFranquia     Role = "FRANQUIA"
	RoleFranqueadora Role = "FRANQUEADORA"
	RoleAdmin        Role = "ADMIN"
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleTeacher      Role = "TEACHER"
	RoleStudent      Role = "STUDENT"
)

// AdminRoles bypass booking ownership checks entirely.
var AdminRoles = []Role{RoleFranquia, RoleFranqueadora, RoleAdmin, RoleSuperAdmin}

// ParseRole trims surrounding whitespace. Roles are case sensitive: "admin"
// is not ADMIN.
func ParseRole(raw string) Role {
	return Role(strings.TrimSpace(raw))
}

// IsAdminRole reports whether role belongs to AdminRoles.
func IsAdminRole(role Role) bool {
	for _, r := range AdminRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Method is the channel a check-in was initiated through.
type Method string

const (
	MethodQRCode Method = "QRCODE"
	MethodManual Method = "MANUAL"
)

// Valid reports whether m is a supported check-in method.
func (m Method) Valid() bool {
	return m == MethodQRCode || m == MethodManual
}

// Booking is the externally owned booking snapshot. Only the ownership and
// status fields take part in authorization; scheduling fields are carried.
type Booking struct {
	ID              string    `json:"id"`
	TeacherID       string    `json:"teacher_id"`
	StudentID       *string   `json:"student_id"` // nil while the slot is unclaimed
	FranchiseID     string    `json:"franchise_id"`
	Status          string    `json:"status"` // legacy free text
	StatusCanonical Status    `json:"status_canonical"`
	Date            time.Time `json:"date"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration"`
}

// HasStudent reports whether the booking has been claimed by a student.
func (b Booking) HasStudent() bool {
	return b.StudentID != nil && *b.StudentID != ""
}

// User is the authenticated actor attempting the check-in.
type User struct {
	ID   string
	Role Role
}

// Request carries the caller-provided check-in parameters.
type Request struct {
	Method Method
}

// DenialCode classifies a refused check-in.
type DenialCode string

const (
	DenialUnauthorized     DenialCode = "UNAUTHORIZED"
	DenialAlreadyCompleted DenialCode = "ALREADY_COMPLETED"
	DenialInvalidStatus    DenialCode = "INVALID_STATUS"
)

// AuditStatus is the outcome stored in an audit record.
type AuditStatus string

const (
	AuditGranted AuditStatus = "GRANTED"
	AuditDenied  AuditStatus = "DENIED"
)

// AuditRecord describes one check-in attempt for the audit log.
type AuditRecord struct {
	AcademyID string      `json:"academy_id"`
	TeacherID string      `json:"teacher_id"`
	BookingID string      `json:"booking_id"`
	Status    AuditStatus `json:"status"`
	Reason    *DenialCode `json:"reason"`
	Method    Method      `json:"method"`
}

// Outcome is either authorized (Code empty, NewStatus set) or denied.
type Outcome struct {
	NewStatus Status
	Code      DenialCode
	Message   string
}

// Authorized reports whether the outcome grants the check-in.
func (o Outcome) Authorized() bool { return o.Code == "" }

// Decision is everything the caller must apply for one check-in attempt.
type Decision struct {
	Outcome        Outcome
	Audit          *AuditRecord
	BookingMutated bool
}
