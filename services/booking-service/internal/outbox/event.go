// Package outbox writes domain events next to the state they describe and
// relays them to Kafka afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/groomdesk/libs/otel"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

const (
	AggregateAppointment = "appointment"
	AggregateInvoice     = "invoice"
	AggregateReminder    = "reminder"
)

// Append records an event in tx. The topic on the wire is eventType and the
// message key is aggregateID.
func Append(ctx context.Context, tx storage.Tx, businessID, aggregateType, aggregateID, eventType string, payload any, at time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	tc := otelx.CurrentTraceContext(ctx)
	return tx.Events().Append(ctx, model.Event{
		ID:            uuid.NewString(),
		BusinessID:    businessID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		Traceparent:   tc.Traceparent,
		Tracestate:    tc.Tracestate,
		CreatedAt:     at,
	})
}

type invoiceStatusChanged struct {
	InvoiceID      string    `json:"invoice_id"`
	BusinessID     string    `json:"business_id"`
	InvoiceNumber  string    `json:"invoice_number"`
	AppointmentID  *string   `json:"appointment_id,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	Status         string    `json:"status"`
	Total          string    `json:"total"`
	ChangedAt      time.Time `json:"changed_at"`
}

// AppendInvoiceStatus records that inv moved from previous to inv.Status.
func AppendInvoiceStatus(ctx context.Context, tx storage.Tx, inv model.Invoice, previous model.InvoiceStatus, at time.Time) error {
	return Append(ctx, tx, inv.BusinessID, AggregateInvoice, inv.ID, model.EventInvoiceStatusChanged, invoiceStatusChanged{
		InvoiceID:      inv.ID,
		BusinessID:     inv.BusinessID,
		InvoiceNumber:  inv.InvoiceNumber,
		AppointmentID:  inv.AppointmentID,
		PreviousStatus: string(previous),
		Status:         string(inv.Status),
		Total:          inv.Total.StringFixed(2),
		ChangedAt:      at,
	}, at)
}
