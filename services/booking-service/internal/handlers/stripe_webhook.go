package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/groomdesk/libs/httpx"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/billing"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	stripeProvider = "stripe"

	metadataBusinessID = "business_id"
	metadataInvoiceID  = "invoice_id"
)

type StripeWebhookHandler struct {
	billing   *billing.Service
	secret    string
	tolerance time.Duration
	logger    *slog.Logger
}

func NewStripeWebhookHandler(b *billing.Service, secret string, tolerance time.Duration, logger *slog.Logger) *StripeWebhookHandler {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeWebhookHandler{billing: b, secret: secret, tolerance: tolerance, logger: logger}
}

// ServeHTTP handles Stripe webhooks. There is no tenant auth on this route;
// the signature is the auth and the business comes from event metadata.
func (h *StripeWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.secret) == "" {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "not_configured", Message: "stripe webhook not configured"})
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "missing Stripe-Signature header"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "failed to read request body"})
		return
	}

	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, h.secret, webhook.ConstructEventOptions{
		Tolerance:                h.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_signature", Message: "invalid signature"})
		return
	}

	occurredAt := time.Unix(evt.Created, 0).UTC()
	evtType := string(evt.Type)
	h.logger.Info("billing provider event received",
		"provider", stripeProvider,
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", occurredAt.Format(time.RFC3339),
	)

	var metadata map[string]string
	switch evtType {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			break
		}
		metadata = pi.Metadata
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		metadata = session.Metadata
	}

	p := billing.Payment{
		Provider:   stripeProvider,
		EventID:    evt.ID,
		BusinessID: strings.TrimSpace(metadata[metadataBusinessID]),
		InvoiceID:  strings.TrimSpace(metadata[metadataInvoiceID]),
		OccurredAt: occurredAt,
	}
	if metadata != nil && (p.BusinessID == "" || p.InvoiceID == "") {
		h.logger.Warn("stripe: missing metadata (business_id/invoice_id)", "provider_event_id", evt.ID)
	}

	outcome, err := h.billing.ApplyPayment(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := "ok"
	if outcome == billing.PaymentDuplicate {
		status = "duplicate"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
