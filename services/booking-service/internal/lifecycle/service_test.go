package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage/memory"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const businessID = "7b0e6f0c-3f51-4d52-9a55-0c2f7e1d9a10"

var (
	bookedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	start    = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	caller   = tenant.Context{BusinessID: businessID, UserID: "staff-1"}
)

type fixture struct {
	store *memory.Store
	svc   *Service
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), clock: bookedAt}
	f.store.SeedDemo(businessID)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.store, policy.NewStaticProvider(policy.DefaultRules()), logger,
		WithClock(func() time.Time { return f.clock }))
	return f
}

// book creates a scheduled appointment at start with invoice and reminder.
func (f *fixture) book(t *testing.T) model.Appointment {
	t.Helper()
	demo := f.store.SeedDemo(businessID)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := booking.NewService(f.store, policy.NewStaticProvider(policy.DefaultRules()), logger,
		booking.WithClock(func() time.Time { return f.clock }))
	appt, err := b.Book(context.Background(), caller, booking.Request{
		ClientID: demo.ClientID, SubjectID: demo.SubjectID, ServiceID: demo.ServiceID, StartTime: start,
	})
	require.NoError(t, err)
	return appt
}

// forceStatus writes status directly, bypassing the state machine.
func (f *fixture) forceStatus(t *testing.T, id string, status model.AppointmentStatus) {
	t.Helper()
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		a, err := tx.Appointments().GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		a.Status = status
		return tx.Appointments().Update(ctx, a)
	}))
}

func (f *fixture) transition(id string, to model.AppointmentStatus) (model.Appointment, error) {
	return f.svc.Transition(context.Background(), caller, TransitionRequest{AppointmentID: id, Target: to})
}

func TestAllowedTable(t *testing.T) {
	allowed := map[[2]model.AppointmentStatus]bool{
		{model.StatusScheduled, model.StatusConfirmed}:   true,
		{model.StatusScheduled, model.StatusCancelled}:   true,
		{model.StatusScheduled, model.StatusNoShow}:      true,
		{model.StatusConfirmed, model.StatusInProgress}:  true,
		{model.StatusConfirmed, model.StatusCancelled}:   true,
		{model.StatusConfirmed, model.StatusNoShow}:      true,
		{model.StatusInProgress, model.StatusCompleted}:  true,
		{model.StatusInProgress, model.StatusCancelled}:  true,
		{model.StatusInProgress, model.StatusNoShow}:     true,
	}
	for _, from := range model.AppointmentStatuses {
		for _, to := range model.AppointmentStatuses {
			assert.Equal(t, allowed[[2]model.AppointmentStatus{from, to}], Allowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition_DisallowedEdgesWriteNothing(t *testing.T) {
	for _, from := range model.AppointmentStatuses {
		for _, to := range model.AppointmentStatuses {
			if from == to || Allowed(from, to) {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t)
				appt := f.book(t)
				f.forceStatus(t, appt.ID, from)
				before := f.store.Appointments()[0]
				eventsBefore := len(f.store.Events())

				_, err := f.transition(appt.ID, to)
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
				assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
				if from.Terminal() {
					assert.Equal(t, "appointment is "+string(from)+" and can no longer change status", apperr.MessageOf(err))
				} else {
					assert.Equal(t, "cannot move from "+string(from)+" to "+string(to), apperr.MessageOf(err))
				}

				assert.Equal(t, before, f.store.Appointments()[0])
				assert.Equal(t, model.ReminderPending, f.store.Reminders()[0].Status)
				assert.Equal(t, model.InvoiceDraft, f.store.Invoices()[0].Status)
				assert.Len(t, f.store.Events(), eventsBefore)
			})
		}
	}
}

func TestTransition_SameStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)
	_, err := f.transition(appt.ID, model.StatusConfirmed)
	require.NoError(t, err)
	before := f.store.Appointments()[0]

	f.clock = f.clock.Add(time.Hour)
	got, err := f.transition(appt.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, before, f.store.Appointments()[0])
}

func TestTransition_SameTerminalStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)
	_, err := f.transition(appt.ID, model.StatusCancelled)
	require.NoError(t, err)

	got, err := f.transition(appt.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestTransition_HappyPath(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)

	for _, to := range []model.AppointmentStatus{model.StatusConfirmed, model.StatusInProgress, model.StatusCompleted} {
		got, err := f.transition(appt.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, got.Status)
	}
	_, err := f.transition(appt.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestTransition_CancelLateBoundary(t *testing.T) {
	tests := []struct {
		name   string
		before time.Duration
		late   bool
	}{
		{"24h0m before start", 24 * time.Hour, false},
		{"23h59m before start", 23*time.Hour + 59*time.Minute, true},
		{"after start", -time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			appt := f.book(t)

			f.clock = start.Add(-tt.before)
			reason := "  pet is sick  "
			got, err := f.svc.Transition(context.Background(), caller, TransitionRequest{
				AppointmentID:      appt.ID,
				Target:             model.StatusCancelled,
				CancellationReason: &reason,
			})
			require.NoError(t, err)

			assert.Equal(t, model.StatusCancelled, got.Status)
			assert.Equal(t, tt.late, got.IsLateCancel)
			require.NotNil(t, got.CancelledAt)
			assert.Equal(t, f.clock, *got.CancelledAt)
			require.NotNil(t, got.CancellationReason)
			assert.Equal(t, "pet is sick", *got.CancellationReason)

			stored := f.store.Appointments()[0]
			assert.Equal(t, tt.late, stored.IsLateCancel)
		})
	}
}

func TestTransition_CancelCancelsPendingRemindersOnly(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)

	got, err := f.transition(appt.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Nil(t, got.CancellationReason)

	reminders := f.store.Reminders()
	require.Len(t, reminders, 1)
	assert.Equal(t, model.ReminderCancelled, reminders[0].Status)
	assert.Equal(t, model.InvoiceDraft, f.store.Invoices()[0].Status)

	events := f.store.Events()
	assert.Equal(t, model.EventAppointmentCancelled, events[len(events)-1].EventType)
}

func TestTransition_CompletePromotesDraftInvoice(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)
	f.forceStatus(t, appt.ID, model.StatusInProgress)

	_, err := f.transition(appt.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceSent, f.store.Invoices()[0].Status)

	var types []string
	for _, e := range f.store.Events() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		model.EventAppointmentBooked,
		model.EventInvoiceStatusChanged,
		model.EventAppointmentCompleted,
	}, types)
}

func TestTransition_CompleteLeavesPaidInvoice(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)
	f.forceStatus(t, appt.ID, model.StatusInProgress)
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		inv, err := tx.Invoices().GetByAppointmentForUpdate(ctx, businessID, appt.ID)
		if err != nil {
			return err
		}
		inv.Status = model.InvoicePaid
		return tx.Invoices().UpdateStatus(ctx, inv)
	}))

	_, err := f.transition(appt.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, f.store.Invoices()[0].Status)
}

func TestTransition_NoShowWritesStatusOnly(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)

	got, err := f.transition(appt.ID, model.StatusNoShow)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, got.Status)
	assert.Nil(t, got.CancelledAt)
	assert.Equal(t, model.ReminderPending, f.store.Reminders()[0].Status)
	assert.Equal(t, model.InvoiceDraft, f.store.Invoices()[0].Status)
	assert.Len(t, f.store.Events(), 1)
}

func TestTransition_NotFoundAndValidation(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)

	_, err := f.transition("missing", model.StatusConfirmed)
	assert.ErrorIs(t, err, apperr.ErrAppointmentNotFound)

	_, err = f.svc.Transition(context.Background(), tenant.Context{BusinessID: "other"},
		TransitionRequest{AppointmentID: appt.ID, Target: model.StatusConfirmed})
	assert.ErrorIs(t, err, apperr.ErrAppointmentNotFound)

	_, err = f.transition(appt.ID, model.AppointmentStatus("done"))
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	require.NoError(t, f.svc.Delete(context.Background(), caller, appt.ID))
	_, err = f.transition(appt.ID, model.StatusConfirmed)
	assert.ErrorIs(t, err, apperr.ErrAppointmentNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, caller, appt.ID))

	stored := f.store.Appointments()[0]
	require.NotNil(t, stored.DeletedAt)
	assert.Equal(t, model.StatusScheduled, stored.Status)
	assert.Equal(t, model.ReminderCancelled, f.store.Reminders()[0].Status)
	assert.Equal(t, model.InvoiceDraft, f.store.Invoices()[0].Status)

	list, err := f.svc.List(ctx, caller, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, f.svc.Delete(ctx, caller, appt.ID), apperr.ErrAppointmentNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, caller, "missing"), apperr.ErrAppointmentNotFound)
}

func TestUpdateNotes_AllowedOnTerminal(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t)
	_, err := f.transition(appt.ID, model.StatusNoShow)
	require.NoError(t, err)

	got, err := f.svc.UpdateNotes(context.Background(), caller, appt.ID, "owner called, will rebook")
	require.NoError(t, err)
	assert.Equal(t, "owner called, will rebook", got.Notes)
	assert.Equal(t, model.StatusNoShow, got.Status)
}

func TestList_ActiveAppointmentsOfCaller(t *testing.T) {
	f := newFixture(t)
	first := f.book(t)
	second := f.book(t)
	gone := f.book(t)
	require.NoError(t, f.svc.Delete(context.Background(), caller, gone.ID))

	list, err := f.svc.List(context.Background(), caller, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{list[0].ID, list[1].ID})

	list, err = f.svc.List(context.Background(), tenant.Context{BusinessID: "other"}, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
