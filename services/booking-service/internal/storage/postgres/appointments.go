package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

const appointmentColumns = `id::text, business_id::text, client_id::text, subject_id::text, service_id::text,
	start_time, end_time, status, total_price::text, notes, cancelled_at, cancellation_reason,
	is_late_cancel, deleted_at, created_at, updated_at`

type appointmentRepo struct {
	tx pgx.Tx
}

func (r appointmentRepo) Insert(ctx context.Context, a model.Appointment) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, business_id, client_id, subject_id, service_id, start_time, end_time, status,
			 total_price, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12)
	`, a.ID, a.BusinessID, a.ClientID, a.SubjectID, a.ServiceID, a.StartTime, a.EndTime, string(a.Status),
		a.TotalPrice.String(), a.Notes, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

func (r appointmentRepo) GetForUpdate(ctx context.Context, businessID, id string) (model.Appointment, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, id, businessID)
	appt, err := scanAppointment(row)
	return appt, mapErr(err)
}

func (r appointmentRepo) Update(ctx context.Context, a model.Appointment) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3,
			notes = $4,
			cancelled_at = $5,
			cancellation_reason = $6,
			is_late_cancel = $7,
			deleted_at = $8,
			updated_at = $9
		WHERE id = $1 AND business_id = $2
	`, a.ID, a.BusinessID, string(a.Status), a.Notes, a.CancelledAt, a.CancellationReason,
		a.IsLateCancel, a.DeletedAt, a.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		status string
		price  string
	)
	err := row.Scan(
		&a.ID,
		&a.BusinessID,
		&a.ClientID,
		&a.SubjectID,
		&a.ServiceID,
		&a.StartTime,
		&a.EndTime,
		&status,
		&price,
		&a.Notes,
		&a.CancelledAt,
		&a.CancellationReason,
		&a.IsLateCancel,
		&a.DeletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.AppointmentStatus(status)
	a.TotalPrice, err = parseDecimal(price)
	return a, err
}
