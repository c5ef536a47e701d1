package pg

import (
	"context"

	"agendafit.app/internal/audit"
	"agendafit.app/internal/checkin"
)

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	return appendAudit(ctx, s.db, e)
}

func appendAudit(ctx context.Context, q execer, e audit.Entry) error {
	var reason any
	if e.Reason != nil {
		reason = string(*e.Reason)
	}
	_, err := q.ExecContext(ctx, `
		insert into checkin_audit(id, booking_id, academy_id, teacher_id, status, reason, method, actor_user_id, request_id, occurred_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,nullif($9,''),$10)
	`, e.ID, e.BookingID, e.AcademyID, e.TeacherID, string(e.Status), reason, string(e.Method), e.ActorUserID, e.RequestID, e.OccurredAt)
	return mapErr(err)
}

func (s *Store) ListByBooking(ctx context.Context, bookingID string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, booking_id, academy_id, teacher_id, status, coalesce(reason,''), method, actor_user_id, coalesce(request_id,''), occurred_at
		from checkin_audit
		where booking_id=$1
		order by occurred_at asc, id asc
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []audit.Entry
	for rows.Next() {
		var (
			e              audit.Entry
			status, method string
			reason         string
		)
		if err := rows.Scan(&e.ID, &e.BookingID, &e.AcademyID, &e.TeacherID, &status, &reason, &method, &e.ActorUserID, &e.RequestID, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Status = checkin.AuditStatus(status)
		e.Method = checkin.Method(method)
		if reason != "" {
			code := checkin.DenialCode(reason)
			e.Reason = &code
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
