package model

import "time"

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventAppointmentCompleted = "booking.appointment.completed.v1"
	EventAppointmentDeleted   = "booking.appointment.deleted.v1"
	EventInvoiceStatusChanged = "billing.invoice.status_changed.v1"
	EventReminderDue          = "booking.reminder.due.v1"
)

// Event is an outbox row written in the same unit as the change it describes.
type Event struct {
	ID            string
	BusinessID    string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
