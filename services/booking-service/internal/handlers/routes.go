package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/groomdesk/libs/httpx"
)

type Routes struct {
	Appointments *AppointmentHandler
	Invoices     *InvoiceHandler
	Stripe       *StripeWebhookHandler
	// Tenant guards every route except the Stripe webhook.
	Tenant httpx.Middleware
	// Limit rate-limits tenant routes; nil disables it.
	Limit httpx.Middleware
}

func (rt Routes) Register(mux *http.ServeMux) {
	guard := func(h http.HandlerFunc) http.Handler {
		// The limiter keys on the business header, so it runs after tenant resolution.
		return httpx.Chain(h, rt.Tenant, rt.Limit)
	}

	mux.Handle("POST /api/v1/appointments", guard(rt.Appointments.Create))
	mux.Handle("GET /api/v1/appointments", guard(rt.Appointments.List))
	mux.Handle("DELETE /api/v1/appointments", guard(rt.Appointments.Delete))
	mux.Handle("PATCH /api/v1/appointments/status", guard(rt.Appointments.UpdateStatus))
	mux.Handle("PATCH /api/v1/appointments/notes", guard(rt.Appointments.UpdateNotes))
	mux.Handle("PATCH /api/v1/invoices/status", guard(rt.Invoices.UpdateStatus))
	if rt.Stripe != nil {
		mux.Handle("POST /api/v1/billing/webhooks/stripe", rt.Stripe)
	}
}
