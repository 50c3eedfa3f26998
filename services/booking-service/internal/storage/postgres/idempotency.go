package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
)

type idempotencyRepo struct {
	tx pgx.Tx
}

// Lock takes the key row, creating it first if needed. A concurrent booking
// with the same key waits here until the other transaction ends.
func (r idempotencyRepo) Lock(ctx context.Context, businessID, key string) (*model.Appointment, error) {
	raw, err := r.selectForUpdate(ctx, businessID, key)
	if err == nil {
		return decodeSnapshot(raw)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapErr(err)
	}

	_, err = r.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key)
	if err != nil {
		return nil, mapErr(err)
	}

	raw, err = r.selectForUpdate(ctx, businessID, key)
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeSnapshot(raw)
}

func (r idempotencyRepo) Complete(ctx context.Context, businessID, key string, appt model.Appointment) error {
	raw, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	_, err = r.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3, response = $4, updated_at = $5
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, appt.ID, raw, time.Now().UTC())
	return mapErr(err)
}

func (r idempotencyRepo) selectForUpdate(ctx context.Context, businessID, key string) ([]byte, error) {
	var raw []byte
	err := r.tx.QueryRow(ctx, `
		SELECT response
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&raw)
	return raw, err
}

func decodeSnapshot(raw []byte) (*model.Appointment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var appt model.Appointment
	if err := json.Unmarshal(raw, &appt); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &appt, nil
}

type providerEventRepo struct {
	tx pgx.Tx
}

func (r providerEventRepo) Record(ctx context.Context, provider, eventID string, at time.Time) (bool, error) {
	tag, err := r.tx.Exec(ctx, `
		INSERT INTO provider_events (provider, event_id, received_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID, at)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}
