package memory

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/invoicing"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

type tx struct {
	st *state
}

func (t *tx) Appointments() storage.AppointmentRepository     { return appointments{t.st} }
func (t *tx) Invoices() storage.InvoiceRepository             { return invoices{t.st} }
func (t *tx) Reminders() storage.ReminderRepository           { return reminders{t.st} }
func (t *tx) Events() storage.EventRepository                 { return events{t.st} }
func (t *tx) Idempotency() storage.IdempotencyRepository      { return idempotency{t.st} }
func (t *tx) ProviderEvents() storage.ProviderEventRepository { return providerEvents{t.st} }

type appointments struct{ st *state }

func (r appointments) Insert(_ context.Context, a model.Appointment) error {
	if _, exists := r.st.appointments[a.ID]; exists {
		return storage.ErrConflict
	}
	a.Client, a.Subject, a.Service = nil, nil, nil
	r.st.appointments[a.ID] = a
	return nil
}

func (r appointments) GetForUpdate(_ context.Context, businessID, id string) (model.Appointment, error) {
	a, ok := r.st.appointments[id]
	if !ok || a.BusinessID != businessID || a.DeletedAt != nil {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (r appointments) Update(_ context.Context, a model.Appointment) error {
	if _, ok := r.st.appointments[a.ID]; !ok {
		return storage.ErrNotFound
	}
	a.Client, a.Subject, a.Service = nil, nil, nil
	r.st.appointments[a.ID] = a
	return nil
}

type invoices struct{ st *state }

func (r invoices) NextSequence(_ context.Context, businessID string, year int) (int, error) {
	key := seqKey{businessID: businessID, year: year}
	last, ok := r.st.sequences[key]
	if !ok {
		for _, inv := range r.st.invoices {
			if inv.BusinessID != businessID {
				continue
			}
			if y, seq, ok := invoicing.ParseNumber(inv.InvoiceNumber); ok && y == year && seq > last {
				last = seq
			}
		}
	}
	r.st.sequences[key] = last + 1
	return last + 1, nil
}

func (r invoices) Insert(_ context.Context, inv model.Invoice) error {
	for _, existing := range r.st.invoices {
		if existing.ID == inv.ID {
			return storage.ErrConflict
		}
		if existing.BusinessID == inv.BusinessID && existing.InvoiceNumber == inv.InvoiceNumber {
			return storage.ErrConflict
		}
	}
	r.st.invoices[inv.ID] = inv
	return nil
}

func (r invoices) GetForUpdate(_ context.Context, businessID, id string) (model.Invoice, error) {
	inv, ok := r.st.invoices[id]
	if !ok || inv.BusinessID != businessID {
		return model.Invoice{}, storage.ErrNotFound
	}
	return inv, nil
}

func (r invoices) GetByAppointmentForUpdate(_ context.Context, businessID, appointmentID string) (model.Invoice, error) {
	for _, inv := range r.st.invoices {
		if inv.BusinessID == businessID && inv.AppointmentID != nil && *inv.AppointmentID == appointmentID {
			return inv, nil
		}
	}
	return model.Invoice{}, storage.ErrNotFound
}

func (r invoices) UpdateStatus(_ context.Context, inv model.Invoice) error {
	cur, ok := r.st.invoices[inv.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.Status = inv.Status
	cur.PaidAt = inv.PaidAt
	cur.UpdatedAt = inv.UpdatedAt
	r.st.invoices[inv.ID] = cur
	return nil
}

type reminders struct{ st *state }

func (r reminders) Insert(_ context.Context, rem model.Reminder) error {
	if _, exists := r.st.reminders[rem.ID]; exists {
		return storage.ErrConflict
	}
	r.st.reminders[rem.ID] = rem
	return nil
}

func (r reminders) CancelPending(_ context.Context, appointmentID string) (int, error) {
	n := 0
	for id, rem := range r.st.reminders {
		if rem.AppointmentID == appointmentID && rem.Status == model.ReminderPending {
			rem.Status = model.ReminderCancelled
			r.st.reminders[id] = rem
			n++
		}
	}
	return n, nil
}

func (r reminders) ClaimDue(_ context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	var due []model.Reminder
	for _, rem := range r.st.reminders {
		if rem.Status == model.ReminderPending && !rem.ScheduledFor.After(now) {
			due = append(due, rem)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r reminders) MarkSent(_ context.Context, id string, at time.Time) error {
	rem, ok := r.st.reminders[id]
	if !ok {
		return storage.ErrNotFound
	}
	rem.Status = model.ReminderSent
	rem.SentAt = &at
	r.st.reminders[id] = rem
	return nil
}

type events struct{ st *state }

func (r events) Append(_ context.Context, e model.Event) error {
	r.st.events = append(r.st.events, e)
	return nil
}

func (r events) ClaimUnpublished(_ context.Context, limit int) ([]model.Event, error) {
	var out []model.Event
	for _, e := range r.st.events {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r events) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range r.st.events {
		if _, ok := set[r.st.events[i].ID]; ok {
			r.st.events[i].PublishedAt = &at
		}
	}
	return nil
}

type idempotency struct{ st *state }

func (r idempotency) Lock(_ context.Context, businessID, key string) (*model.Appointment, error) {
	k := idemKey{businessID: businessID, key: key}
	saved, ok := r.st.idempotency[k]
	if !ok {
		r.st.idempotency[k] = nil
	}
	if saved == nil {
		return nil, nil
	}
	appt := *saved
	return &appt, nil
}

func (r idempotency) Complete(_ context.Context, businessID, key string, appt model.Appointment) error {
	r.st.idempotency[idemKey{businessID: businessID, key: key}] = &appt
	return nil
}

type providerEvents struct{ st *state }

func (r providerEvents) Record(_ context.Context, provider, eventID string, at time.Time) (bool, error) {
	k := provider + ":" + eventID
	if _, seen := r.st.providerEvents[k]; seen {
		return false, nil
	}
	r.st.providerEvents[k] = at
	return true, nil
}
