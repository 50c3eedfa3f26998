package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

type reminderRepo struct {
	tx pgx.Tx
}

func (r reminderRepo) Insert(ctx context.Context, rem model.Reminder) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO reminders
			(id, appointment_id, business_id, type, channel, scheduled_for, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rem.ID, rem.AppointmentID, rem.BusinessID, rem.Type, rem.Channel, rem.ScheduledFor,
		string(rem.Status), rem.CreatedAt)
	return mapErr(err)
}

func (r reminderRepo) CancelPending(ctx context.Context, appointmentID string) (int, error) {
	tag, err := r.tx.Exec(ctx, `
		UPDATE reminders
		SET status = 'cancelled'
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r reminderRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id::text, appointment_id::text, business_id::text, type, channel, scheduled_for, status, sent_at, created_at
		FROM reminders
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		var (
			rem    model.Reminder
			status string
		)
		if err := rows.Scan(&rem.ID, &rem.AppointmentID, &rem.BusinessID, &rem.Type, &rem.Channel,
			&rem.ScheduledFor, &status, &rem.SentAt, &rem.CreatedAt); err != nil {
			return nil, err
		}
		rem.Status = model.ReminderStatus(status)
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r reminderRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE reminders SET status = 'sent', sent_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
