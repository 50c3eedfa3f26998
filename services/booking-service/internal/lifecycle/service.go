// Package lifecycle moves appointments through their status machine and
// handles soft deletion and note edits.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/groomdesk/libs/otel"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/tenant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Service struct {
	store   storage.Store
	rules   policy.Provider
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store storage.Store, rules policy.Provider, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		rules:  rules,
		logger: logger,
		tracer: otelx.Tracer("lifecycle"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type TransitionRequest struct {
	AppointmentID      string
	Target             model.AppointmentStatus
	CancellationReason *string
}

// Transition applies one status change and its side effects in a single unit.
// Re-applying the current status succeeds without writing anything.
func (s *Service) Transition(ctx context.Context, tc tenant.Context, req TransitionRequest) (appt model.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Transition", trace.WithAttributes(
		attribute.String("business.id", tc.BusinessID),
		attribute.String("appointment.id", req.AppointmentID),
		attribute.String("appointment.target_status", string(req.Target)),
	))
	defer endSpan(span, &err)

	if strings.TrimSpace(req.AppointmentID) == "" {
		return model.Appointment{}, apperr.Invalid("id is required")
	}
	if !req.Target.Valid() {
		return model.Appointment{}, apperr.Invalid("unknown status %q", req.Target)
	}

	rules, err := s.rules.Rules(ctx, tc.BusinessID)
	if err != nil {
		return model.Appointment{}, apperr.Storage("load business rules", err)
	}

	var (
		from    model.AppointmentStatus
		applied bool
	)
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		cur, err := tx.Appointments().GetForUpdate(ctx, tc.BusinessID, req.AppointmentID)
		if err != nil {
			return notFound(err)
		}
		from, applied = cur.Status, false
		if cur.Status == req.Target {
			appt = cur
			return nil
		}

		if cur.Status.Terminal() {
			return apperr.Final(string(cur.Status))
		}
		effect, ok := successors[cur.Status][req.Target]
		if !ok {
			return apperr.Transition(string(cur.Status), string(req.Target))
		}

		now := s.now().UTC()
		cur.Status = req.Target
		cur.UpdatedAt = now
		if effect != nil {
			c := &change{appt: &cur, from: from, reason: normalizeReason(req.CancellationReason), rules: rules, now: now}
			if err := effect(ctx, tx, c); err != nil {
				return err
			}
		}
		if err := tx.Appointments().Update(ctx, cur); err != nil {
			return err
		}
		appt, applied = cur, true
		return nil
	})
	if err != nil {
		return model.Appointment{}, apperr.Storage("transition appointment", err)
	}

	if applied {
		s.metrics.Transition(string(from), string(appt.Status))
		s.logger.Info("appointment status changed",
			"business_id", tc.BusinessID,
			"appointment_id", appt.ID,
			"from", from,
			"to", appt.Status,
			"user_id", tc.UserID,
			"late_cancel", appt.IsLateCancel,
		)
	}
	return appt, nil
}

// Delete soft-deletes the appointment and cancels its pending reminders. The
// invoice is left untouched.
func (s *Service) Delete(ctx context.Context, tc tenant.Context, appointmentID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Delete", trace.WithAttributes(
		attribute.String("business.id", tc.BusinessID),
		attribute.String("appointment.id", appointmentID),
	))
	defer endSpan(span, &err)

	if strings.TrimSpace(appointmentID) == "" {
		return apperr.Invalid("id is required")
	}

	var cancelled int
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		appt, err := tx.Appointments().GetForUpdate(ctx, tc.BusinessID, appointmentID)
		if err != nil {
			return notFound(err)
		}
		now := s.now().UTC()
		appt.DeletedAt = &now
		appt.UpdatedAt = now
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}
		if cancelled, err = tx.Reminders().CancelPending(ctx, appt.ID); err != nil {
			return err
		}
		return outbox.Append(ctx, tx, tc.BusinessID, outbox.AggregateAppointment, appt.ID, model.EventAppointmentDeleted, deletedEvent{
			AppointmentID:      appt.ID,
			BusinessID:         tc.BusinessID,
			DeletedAt:          now,
			RemindersCancelled: cancelled,
		}, now)
	})
	if err != nil {
		return apperr.Storage("delete appointment", err)
	}
	s.logger.Info("appointment deleted",
		"business_id", tc.BusinessID,
		"appointment_id", appointmentID,
		"reminders_cancelled", cancelled,
	)
	return nil
}

// UpdateNotes edits notes in any status, terminal ones included.
func (s *Service) UpdateNotes(ctx context.Context, tc tenant.Context, appointmentID, notes string) (model.Appointment, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return model.Appointment{}, apperr.Invalid("id is required")
	}
	var appt model.Appointment
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		cur, err := tx.Appointments().GetForUpdate(ctx, tc.BusinessID, appointmentID)
		if err != nil {
			return notFound(err)
		}
		cur.Notes = notes
		cur.UpdatedAt = s.now().UTC()
		if err := tx.Appointments().Update(ctx, cur); err != nil {
			return err
		}
		appt = cur
		return nil
	})
	if err != nil {
		return model.Appointment{}, apperr.Storage("update notes", err)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, tc tenant.Context, limit int) ([]model.Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	appts, err := s.store.ListAppointments(ctx, tc.BusinessID, limit)
	if err != nil {
		return nil, apperr.Storage("list appointments", err)
	}
	return appts, nil
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.ErrAppointmentNotFound
	}
	return err
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, apperr.CodeOf(*err))
	}
	span.End()
}
