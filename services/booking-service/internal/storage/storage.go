// Package storage defines the unit-of-work contract the booking core runs on.
// Implementations live in storage/postgres and storage/memory.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict reports a unique-constraint violation; the unit was rolled back.
	ErrConflict = errors.New("storage: conflict")
)

// Store runs atomic units of work and serves read-only lookups outside them.
type Store interface {
	Directory

	// Atomic runs fn in one unit of work. Every write made through tx is
	// committed if fn returns nil and discarded otherwise, including when ctx
	// is cancelled mid-unit.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ListAppointments returns non-deleted appointments of a business, newest start first.
	ListAppointments(ctx context.Context, businessID string, limit int) ([]model.Appointment, error)
}

// Directory resolves the records a booking refers to. Soft-deleted clients
// and subjects are reported as ErrNotFound.
type Directory interface {
	Client(ctx context.Context, businessID, clientID string) (model.Client, error)
	Subject(ctx context.Context, clientID, subjectID string) (model.Subject, error)
	Service(ctx context.Context, businessID, serviceID string) (model.Service, error)
}

type Tx interface {
	Appointments() AppointmentRepository
	Invoices() InvoiceRepository
	Reminders() ReminderRepository
	Events() EventRepository
	Idempotency() IdempotencyRepository
	ProviderEvents() ProviderEventRepository
}

type AppointmentRepository interface {
	Insert(ctx context.Context, a model.Appointment) error
	// GetForUpdate locks a non-deleted appointment of businessID.
	GetForUpdate(ctx context.Context, businessID, id string) (model.Appointment, error)
	Update(ctx context.Context, a model.Appointment) error
}

type InvoiceRepository interface {
	// NextSequence reserves the next sequence for (businessID, year). The
	// reservation is held until the unit ends.
	NextSequence(ctx context.Context, businessID string, year int) (int, error)
	// Insert returns ErrConflict when the number is already taken for the business.
	Insert(ctx context.Context, inv model.Invoice) error
	GetForUpdate(ctx context.Context, businessID, id string) (model.Invoice, error)
	GetByAppointmentForUpdate(ctx context.Context, businessID, appointmentID string) (model.Invoice, error)
	UpdateStatus(ctx context.Context, inv model.Invoice) error
}

type ReminderRepository interface {
	Insert(ctx context.Context, r model.Reminder) error
	// CancelPending cancels every pending reminder of the appointment and
	// returns how many changed.
	CancelPending(ctx context.Context, appointmentID string) (int, error)
	// ClaimDue locks up to limit pending reminders scheduled at or before now,
	// skipping rows another unit already holds.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
}

type EventRepository interface {
	Append(ctx context.Context, e model.Event) error
	// ClaimUnpublished locks up to limit unpublished events, oldest first.
	ClaimUnpublished(ctx context.Context, limit int) ([]model.Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

type IdempotencyRepository interface {
	// Lock creates or locks the key row. It returns the appointment saved by
	// Complete when a previous unit already booked under this key, else nil.
	Lock(ctx context.Context, businessID, key string) (*model.Appointment, error)
	// Complete saves the booked appointment exactly as it was returned.
	Complete(ctx context.Context, businessID, key string, appt model.Appointment) error
}

type ProviderEventRepository interface {
	// Record stores a payment provider event id; false means it was seen before.
	Record(ctx context.Context, provider, eventID string, at time.Time) (bool, error)
}
