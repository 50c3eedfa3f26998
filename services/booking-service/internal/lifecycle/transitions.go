package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

// change is the state a side effect works on. Effects mutate appt in place;
// the caller persists it afterwards in the same unit.
type change struct {
	appt   *model.Appointment
	from   model.AppointmentStatus
	reason *string
	rules  policy.Rules
	now    time.Time
}

type sideEffect func(ctx context.Context, tx storage.Tx, c *change) error

// successors is the whole state machine: an edge exists iff it is listed, and
// its value is the side effect applied with the status write (nil for none).
var successors = map[model.AppointmentStatus]map[model.AppointmentStatus]sideEffect{
	model.StatusScheduled: {
		model.StatusConfirmed: nil,
		model.StatusCancelled: cancel,
		model.StatusNoShow:    nil,
	},
	model.StatusConfirmed: {
		model.StatusInProgress: nil,
		model.StatusCancelled:  cancel,
		model.StatusNoShow:     nil,
	},
	model.StatusInProgress: {
		model.StatusCompleted: complete,
		model.StatusCancelled: cancel,
		model.StatusNoShow:    nil,
	},
}

// Allowed reports whether from -> to is an edge of the state machine.
// Re-applying the current status is handled separately as a no-op.
func Allowed(from, to model.AppointmentStatus) bool {
	_, ok := successors[from][to]
	return ok
}

func cancel(ctx context.Context, tx storage.Tx, c *change) error {
	at := c.now
	c.appt.CancelledAt = &at
	c.appt.CancellationReason = c.reason
	c.appt.IsLateCancel = policy.IsLate(c.appt.StartTime, at, c.rules.LateCancelThreshold)

	n, err := tx.Reminders().CancelPending(ctx, c.appt.ID)
	if err != nil {
		return err
	}
	return outbox.Append(ctx, tx, c.appt.BusinessID, outbox.AggregateAppointment, c.appt.ID, model.EventAppointmentCancelled, cancelledEvent{
		AppointmentID:      c.appt.ID,
		BusinessID:         c.appt.BusinessID,
		PreviousStatus:     string(c.from),
		CancelledAt:        at,
		CancellationReason: c.reason,
		IsLateCancel:       c.appt.IsLateCancel,
		RemindersCancelled: n,
	}, at)
}

// complete promotes a draft invoice to sent. Any other invoice status is left
// as is so completing never regresses billing.
func complete(ctx context.Context, tx storage.Tx, c *change) error {
	inv, err := tx.Invoices().GetByAppointmentForUpdate(ctx, c.appt.BusinessID, c.appt.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return err
	case inv.Status == model.InvoiceDraft:
		inv.Status = model.InvoiceSent
		inv.UpdatedAt = c.now
		if err := tx.Invoices().UpdateStatus(ctx, inv); err != nil {
			return err
		}
		if err := outbox.AppendInvoiceStatus(ctx, tx, inv, model.InvoiceDraft, c.now); err != nil {
			return err
		}
	}
	return outbox.Append(ctx, tx, c.appt.BusinessID, outbox.AggregateAppointment, c.appt.ID, model.EventAppointmentCompleted, completedEvent{
		AppointmentID: c.appt.ID,
		BusinessID:    c.appt.BusinessID,
		CompletedAt:   c.now,
		TotalPrice:    c.appt.TotalPrice.StringFixed(2),
	}, c.now)
}

func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

type cancelledEvent struct {
	AppointmentID      string    `json:"appointment_id"`
	BusinessID         string    `json:"business_id"`
	PreviousStatus     string    `json:"previous_status"`
	CancelledAt        time.Time `json:"cancelled_at"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
	IsLateCancel       bool      `json:"is_late_cancel"`
	RemindersCancelled int       `json:"reminders_cancelled"`
}

type completedEvent struct {
	AppointmentID string    `json:"appointment_id"`
	BusinessID    string    `json:"business_id"`
	CompletedAt   time.Time `json:"completed_at"`
	TotalPrice    string    `json:"total_price"`
}

type deletedEvent struct {
	AppointmentID      string    `json:"appointment_id"`
	BusinessID         string    `json:"business_id"`
	DeletedAt          time.Time `json:"deleted_at"`
	RemindersCancelled int       `json:"reminders_cancelled"`
}
