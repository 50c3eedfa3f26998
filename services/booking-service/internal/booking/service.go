// Package booking creates an appointment together with its invoice and
// pre-visit reminder as one unit of work.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/groomdesk/libs/otel"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/invoicing"
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

type Request struct {
	ClientID       string
	SubjectID      string
	ServiceID      string
	StartTime      time.Time
	Notes          string
	IdempotencyKey string
}

type Service struct {
	store   storage.Store
	rules   policy.Provider
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
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
		tracer: otelx.Tracer("booking"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book validates the request, resolves the referenced client, subject and
// service, and then writes appointment, invoice, optional reminder and the
// booked event in one unit. An invoice-number conflict is retried once.
func (s *Service) Book(ctx context.Context, tc tenant.Context, req Request) (appt model.Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("business.id", tc.BusinessID),
		attribute.String("service.id", req.ServiceID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.CodeOf(err))
		}
		span.End()
	}()

	if err := validate(req); err != nil {
		s.metrics.Booking("invalid")
		return model.Appointment{}, err
	}

	client, subject, svc, err := s.resolve(ctx, tc.BusinessID, req)
	if err != nil {
		s.metrics.Booking("not_found")
		return model.Appointment{}, err
	}

	rules, err := s.rules.Rules(ctx, tc.BusinessID)
	if err != nil {
		return model.Appointment{}, apperr.Storage("load business rules", err)
	}

	var replayed bool
	for attempt := 1; ; attempt++ {
		appt, replayed, err = s.book(ctx, tc.BusinessID, req, client, subject, svc, rules)
		if !errors.Is(err, storage.ErrConflict) {
			break
		}
		s.metrics.InvoiceConflict()
		s.logger.Warn("invoice number conflict", "business_id", tc.BusinessID, "attempt", attempt)
		if attempt == 2 {
			s.metrics.Booking("conflict")
			return model.Appointment{}, apperr.ErrInvoiceNumberConflict
		}
	}
	if err != nil {
		s.metrics.Booking("error")
		return model.Appointment{}, apperr.Storage("book appointment", err)
	}

	if replayed {
		s.metrics.Booking("replayed")
		s.logger.Info("booking replayed", "business_id", tc.BusinessID, "appointment_id", appt.ID)
		return appt, nil
	}

	s.metrics.Booking("created")
	s.logger.Info("appointment booked",
		"business_id", tc.BusinessID,
		"appointment_id", appt.ID,
		"start_time", appt.StartTime,
	)
	return appt, nil
}

func validate(req Request) error {
	var missing []string
	if strings.TrimSpace(req.ClientID) == "" {
		missing = append(missing, "clientId")
	}
	if strings.TrimSpace(req.SubjectID) == "" {
		missing = append(missing, "subjectId")
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		missing = append(missing, "serviceId")
	}
	if req.StartTime.IsZero() {
		missing = append(missing, "startTime")
	}
	if len(missing) > 0 {
		return apperr.Invalid("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, businessID string, req Request) (model.Client, model.Subject, model.Service, error) {
	client, err := s.store.Client(ctx, businessID, req.ClientID)
	if err != nil {
		return model.Client{}, model.Subject{}, model.Service{}, lookupErr(err, apperr.ErrClientNotFound, "lookup client")
	}
	subject, err := s.store.Subject(ctx, client.ID, req.SubjectID)
	if err != nil {
		return model.Client{}, model.Subject{}, model.Service{}, lookupErr(err, apperr.ErrSubjectNotFound, "lookup subject")
	}
	svc, err := s.store.Service(ctx, businessID, req.ServiceID)
	if err != nil {
		return model.Client{}, model.Subject{}, model.Service{}, lookupErr(err, apperr.ErrServiceNotFound, "lookup service")
	}
	if svc.DurationMinutes <= 0 {
		return model.Client{}, model.Subject{}, model.Service{}, apperr.Invalid("service %s has no duration", svc.ID)
	}
	return client, subject, svc, nil
}

func lookupErr(err error, notFound *apperr.Error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	return apperr.Storage(op, err)
}

// book runs one booking unit. A completed idempotency key replays the
// appointment saved with it, unaffected by later status changes or deletion.
func (s *Service) book(ctx context.Context, businessID string, req Request, client model.Client, subject model.Subject, svc model.Service, rules policy.Rules) (model.Appointment, bool, error) {
	var (
		appt     model.Appointment
		replayed bool
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		now := s.now().UTC()
		appt, replayed = model.Appointment{}, false

		if req.IdempotencyKey != "" {
			prev, err := tx.Idempotency().Lock(ctx, businessID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prev != nil {
				appt, replayed = *prev, true
				return nil
			}
		}

		start := req.StartTime.UTC()
		appt = model.Appointment{
			ID:         s.newID(),
			BusinessID: businessID,
			ClientID:   req.ClientID,
			SubjectID:  req.SubjectID,
			ServiceID:  svc.ID,
			StartTime:  start,
			EndTime:    start.Add(svc.Duration()),
			Status:     model.StatusScheduled,
			TotalPrice: svc.Price,
			Notes:      req.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Appointments().Insert(ctx, appt); err != nil {
			return err
		}

		number, err := invoicing.Allocate(ctx, tx, businessID, now.Year())
		if err != nil {
			return err
		}
		tax, total := model.Amounts(svc.Price, rules.TaxRatePercent)
		apptID := appt.ID
		inv := model.Invoice{
			ID:            s.newID(),
			BusinessID:    businessID,
			ClientID:      req.ClientID,
			AppointmentID: &apptID,
			InvoiceNumber: number,
			Subtotal:      svc.Price,
			TaxRate:       rules.TaxRatePercent,
			TaxAmount:     tax,
			Total:         total,
			Status:        model.InvoiceDraft,
			DueDate:       now.Add(rules.InvoiceDueIn),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Invoices().Insert(ctx, inv); err != nil {
			return err
		}

		if remindAt := start.Add(-rules.ReminderLead); remindAt.After(now) {
			if err := tx.Reminders().Insert(ctx, model.Reminder{
				ID:            s.newID(),
				AppointmentID: appt.ID,
				BusinessID:    businessID,
				Type:          model.ReminderTypePreVisit,
				Channel:       model.ReminderChannelEmail,
				ScheduledFor:  remindAt,
				Status:        model.ReminderPending,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
		}

		if err := outbox.Append(ctx, tx, businessID, outbox.AggregateAppointment, appt.ID, model.EventAppointmentBooked, bookedPayload(appt, inv), now); err != nil {
			return err
		}

		appt.Client, appt.Subject, appt.Service = &client, &subject, &svc
		if req.IdempotencyKey != "" {
			return tx.Idempotency().Complete(ctx, businessID, req.IdempotencyKey, appt)
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, false, err
	}
	return appt, replayed, nil
}

type bookedEvent struct {
	AppointmentID string    `json:"appointment_id"`
	BusinessID    string    `json:"business_id"`
	ClientID      string    `json:"client_id"`
	SubjectID     string    `json:"subject_id"`
	ServiceID     string    `json:"service_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	TotalPrice    string    `json:"total_price"`
	InvoiceID     string    `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	InvoiceTotal  string    `json:"invoice_total"`
}

func bookedPayload(appt model.Appointment, inv model.Invoice) bookedEvent {
	return bookedEvent{
		AppointmentID: appt.ID,
		BusinessID:    appt.BusinessID,
		ClientID:      appt.ClientID,
		SubjectID:     appt.SubjectID,
		ServiceID:     appt.ServiceID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		TotalPrice:    appt.TotalPrice.StringFixed(2),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceTotal:  inv.Total.StringFixed(2),
	}
}
