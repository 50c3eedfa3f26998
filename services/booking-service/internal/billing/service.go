// Package billing changes invoice status outside the booking lifecycle:
// manual status edits and payments confirmed by the payment provider.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/tenant"
)

var transitions = map[model.InvoiceStatus][]model.InvoiceStatus{
	model.InvoiceDraft: {model.InvoiceSent, model.InvoicePaid, model.InvoiceCancelled},
	model.InvoiceSent:  {model.InvoicePaid, model.InvoiceCancelled},
}

// CanMove reports whether an invoice may go from one status to another.
// paid and cancelled are final.
func CanMove(from, to model.InvoiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Service struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store storage.Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: m, now: time.Now}
}

// SetStatus moves an invoice of the caller's business to status. Setting the
// current status again is a no-op.
func (s *Service) SetStatus(ctx context.Context, tc tenant.Context, invoiceID string, status model.InvoiceStatus) (model.Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return model.Invoice{}, apperr.Invalid("id is required")
	}
	if !status.Valid() {
		return model.Invoice{}, apperr.Invalid("unknown invoice status %q", status)
	}

	var (
		inv  model.Invoice
		from model.InvoiceStatus
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		cur, err := tx.Invoices().GetForUpdate(ctx, tc.BusinessID, invoiceID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrInvoiceNotFound
		}
		if err != nil {
			return err
		}
		from = cur.Status
		if cur.Status == status {
			inv = cur
			return nil
		}
		if !CanMove(cur.Status, status) {
			return apperr.Transition(string(cur.Status), string(status))
		}
		now := s.now().UTC()
		cur.Status = status
		cur.UpdatedAt = now
		if status == model.InvoicePaid {
			cur.PaidAt = &now
		}
		if err := tx.Invoices().UpdateStatus(ctx, cur); err != nil {
			return err
		}
		inv = cur
		return outbox.AppendInvoiceStatus(ctx, tx, cur, from, now)
	})
	if err != nil {
		return model.Invoice{}, apperr.Storage("set invoice status", err)
	}
	if from != inv.Status {
		s.metrics.InvoiceStatus(string(from), string(inv.Status))
		s.logger.Info("invoice status changed",
			"business_id", tc.BusinessID,
			"invoice_id", inv.ID,
			"invoice_number", inv.InvoiceNumber,
			"from", from,
			"to", inv.Status,
		)
	}
	return inv, nil
}

// Payment is a provider notification that an invoice was paid.
type Payment struct {
	Provider   string
	EventID    string
	BusinessID string
	InvoiceID  string
	OccurredAt time.Time
}

type PaymentOutcome string

const (
	PaymentApplied   PaymentOutcome = "applied"
	PaymentDuplicate PaymentOutcome = "duplicate"
	PaymentIgnored   PaymentOutcome = "ignored"
)

// ApplyPayment marks the invoice paid. Replayed provider events, unknown
// invoices and invoices already paid or cancelled are acknowledged without
// change.
func (s *Service) ApplyPayment(ctx context.Context, p Payment) (PaymentOutcome, error) {
	if p.Provider == "" || p.EventID == "" {
		return "", apperr.Invalid("provider event id is required")
	}

	var (
		outcome = PaymentIgnored
		from    model.InvoiceStatus
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		outcome = PaymentIgnored
		fresh, err := tx.ProviderEvents().Record(ctx, p.Provider, p.EventID, s.now().UTC())
		if err != nil {
			return err
		}
		if !fresh {
			outcome = PaymentDuplicate
			return nil
		}
		if p.BusinessID == "" || p.InvoiceID == "" {
			return nil
		}

		inv, err := tx.Invoices().GetForUpdate(ctx, p.BusinessID, p.InvoiceID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !CanMove(inv.Status, model.InvoicePaid) {
			return nil
		}

		from = inv.Status
		paidAt := p.OccurredAt.UTC()
		inv.Status = model.InvoicePaid
		inv.PaidAt = &paidAt
		inv.UpdatedAt = s.now().UTC()
		if err := tx.Invoices().UpdateStatus(ctx, inv); err != nil {
			return err
		}
		outcome = PaymentApplied
		return outbox.AppendInvoiceStatus(ctx, tx, inv, from, inv.UpdatedAt)
	})
	if err != nil {
		return "", apperr.Storage("apply payment", err)
	}
	s.logger.Info("payment event processed",
		"provider", p.Provider,
		"provider_event_id", p.EventID,
		"business_id", p.BusinessID,
		"invoice_id", p.InvoiceID,
		"outcome", outcome,
	)
	if outcome == PaymentApplied {
		s.metrics.InvoiceStatus(string(from), string(model.InvoicePaid))
	}
	return outcome, nil
}
