// Package postgres implements storage.Store on pgx. Each unit of work is one
// READ COMMITTED transaction; contended rows are taken with FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/groomdesk/libs/db"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
	"github.com/shopspring/decimal"
)

type Store struct {
	pool *db.Pool
}

var _ storage.Store = (*Store)(nil)

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) ListAppointments(ctx context.Context, businessID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND deleted_at IS NULL
		ORDER BY start_time DESC, id
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appts, nil
}

func (s *Store) Client(ctx context.Context, businessID, clientID string) (model.Client, error) {
	var c model.Client
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, email, phone
		FROM clients
		WHERE id = $1 AND business_id = $2 AND deleted_at IS NULL
	`, clientID, businessID).Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone)
	return c, mapErr(err)
}

func (s *Store) Subject(ctx context.Context, clientID, subjectID string) (model.Subject, error) {
	var sub model.Subject
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, client_id::text, name, species
		FROM subjects
		WHERE id = $1 AND client_id = $2 AND deleted_at IS NULL
	`, subjectID, clientID).Scan(&sub.ID, &sub.ClientID, &sub.Name, &sub.Species)
	return sub, mapErr(err)
}

func (s *Store) Service(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	var (
		svc   model.Service
		price string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, price::text, duration_minutes
		FROM services
		WHERE id = $1 AND business_id = $2
	`, serviceID, businessID).Scan(&svc.ID, &svc.BusinessID, &svc.Name, &price, &svc.DurationMinutes)
	if err != nil {
		return model.Service{}, mapErr(err)
	}
	svc.Price, err = decimal.NewFromString(price)
	return svc, err
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) Appointments() storage.AppointmentRepository     { return appointmentRepo{t.tx} }
func (t *tx) Invoices() storage.InvoiceRepository             { return invoiceRepo{t.tx} }
func (t *tx) Reminders() storage.ReminderRepository           { return reminderRepo{t.tx} }
func (t *tx) Events() storage.EventRepository                 { return eventRepo{t.tx} }
func (t *tx) Idempotency() storage.IdempotencyRepository      { return idempotencyRepo{t.tx} }
func (t *tx) ProviderEvents() storage.ProviderEventRepository { return providerEventRepo{t.tx} }

const (
	pgUniqueViolation = "23505"
	// A malformed uuid cannot match any row.
	pgInvalidText = "22P02"
)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
		case pgInvalidText:
			return storage.ErrNotFound
		}
	}
	return err
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return d, nil
}
