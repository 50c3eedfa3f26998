package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/billing"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage/memory"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/tenant"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	businessID    = "3f1c2a9e-8d44-4b1f-9a7e-5c0d6b2e1f00"
	webhookSecret = "whsec_test_secret"
	unknownID     = "00000000-0000-4000-8000-000000000001"
)

var fixedNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	demo  memory.Demo
	mux   *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return newFixtureWithStore(t, store, store)
}

func newFixtureWithStore(t *testing.T, mem *memory.Store, store storage.Store) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rules := policy.NewStaticProvider(policy.DefaultRules())
	clock := func() time.Time { return fixedNow }

	bookingSvc := booking.NewService(store, rules, logger, booking.WithClock(clock))
	lifecycleSvc := lifecycle.NewService(store, rules, logger, lifecycle.WithClock(clock))
	billingSvc := billing.NewService(store, logger, nil)

	mux := http.NewServeMux()
	Routes{
		Appointments: NewAppointmentHandler(bookingSvc, lifecycleSvc, logger),
		Invoices:     NewInvoiceHandler(billingSvc, logger),
		Stripe:       NewStripeWebhookHandler(billingSvc, webhookSecret, time.Hour, logger),
		Tenant:       tenant.NewResolver("", true, logger).Middleware(),
	}.Register(mux)

	return &fixture{store: mem, demo: mem.SeedDemo(businessID), mux: mux}
}

func (f *fixture) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenant.HeaderBusinessID, businessID)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rw := httptest.NewRecorder()
	f.mux.ServeHTTP(rw, req)
	return rw
}

func (f *fixture) book(t *testing.T, start string) appointmentResponse {
	t.Helper()
	rw := f.do(t, http.MethodPost, "/api/v1/appointments", map[string]string{
		"clientId":  f.demo.ClientID,
		"subjectId": f.demo.SubjectID,
		"serviceId": f.demo.ServiceID,
		"startTime": start,
	})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	var out appointmentResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rw *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	return out
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, "2026-03-10T10:00:00Z")
	assert.Equal(t, "scheduled", appt.Status)
	assert.Equal(t, "15.00", appt.TotalPrice)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), appt.EndTime)
	require.NotNil(t, appt.Client)
	assert.Equal(t, "Ada Lovelace", appt.Client.Name)
	require.NotNil(t, appt.Service)
	assert.Equal(t, "15.00", appt.Service.Price)

	invoices := f.store.Invoices()
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-2026-001", invoices[0].InvoiceNumber)
	assert.Equal(t, "18.00", invoices[0].Total.StringFixed(2))
}

func TestCreateAppointment_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", "{", http.StatusBadRequest, "invalid_request"},
		{"missing client", map[string]string{"subjectId": f.demo.SubjectID, "serviceId": f.demo.ServiceID, "startTime": "2026-03-10T10:00:00Z"}, http.StatusBadRequest, "invalid_request"},
		{"bad start time", map[string]string{"clientId": f.demo.ClientID, "subjectId": f.demo.SubjectID, "serviceId": f.demo.ServiceID, "startTime": "tomorrow"}, http.StatusBadRequest, "invalid_request"},
		{"unknown client", map[string]string{"clientId": unknownID, "subjectId": f.demo.SubjectID, "serviceId": f.demo.ServiceID, "startTime": "2026-03-10T10:00:00Z"}, http.StatusNotFound, "client_not_found"},
		{"unknown subject", map[string]string{"clientId": f.demo.ClientID, "subjectId": unknownID, "serviceId": f.demo.ServiceID, "startTime": "2026-03-10T10:00:00Z"}, http.StatusNotFound, "subject_not_found"},
		{"unknown service", map[string]string{"clientId": f.demo.ClientID, "subjectId": f.demo.SubjectID, "serviceId": unknownID, "startTime": "2026-03-10T10:00:00Z"}, http.StatusNotFound, "service_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := f.do(t, http.MethodPost, "/api/v1/appointments", tt.body)
			assert.Equal(t, tt.status, rw.Code)
			assert.Equal(t, tt.code, decodeError(t, rw).Error)
		})
	}
	assert.Empty(t, f.store.Appointments())
	assert.Empty(t, f.store.Invoices())
}

func TestCreateAppointment_RequiresTenant(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader("{}"))
	rw := httptest.NewRecorder()
	f.mux.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestCreateAppointment_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	body := map[string]string{
		"clientId":  f.demo.ClientID,
		"subjectId": f.demo.SubjectID,
		"serviceId": f.demo.ServiceID,
		"startTime": "2026-03-10T10:00:00Z",
	}

	first := f.do(t, http.MethodPost, "/api/v1/appointments", body, HeaderIdempotencyKey, "key-1")
	second := f.do(t, http.MethodPost, "/api/v1/appointments", body, HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b appointmentResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, f.store.Appointments(), 1)
}

func TestCreateAppointment_IdempotencyKeyReplaysOriginalBody(t *testing.T) {
	tests := []struct {
		name   string
		change func(f *fixture, t *testing.T, id string) *httptest.ResponseRecorder
	}{
		{"after cancel", func(f *fixture, t *testing.T, id string) *httptest.ResponseRecorder {
			return f.do(t, http.MethodPatch, "/api/v1/appointments/status", map[string]string{"id": id, "status": "cancelled"})
		}},
		{"after delete", func(f *fixture, t *testing.T, id string) *httptest.ResponseRecorder {
			return f.do(t, http.MethodDelete, "/api/v1/appointments?id="+id, nil)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			body := map[string]string{
				"clientId":  f.demo.ClientID,
				"subjectId": f.demo.SubjectID,
				"serviceId": f.demo.ServiceID,
				"startTime": "2026-03-10T10:00:00Z",
			}

			first := f.do(t, http.MethodPost, "/api/v1/appointments", body, HeaderIdempotencyKey, "key-1")
			require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
			var a appointmentResponse
			require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))

			rw := tt.change(f, t, a.ID)
			require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())

			replay := f.do(t, http.MethodPost, "/api/v1/appointments", body, HeaderIdempotencyKey, "key-1")
			require.Equal(t, http.StatusCreated, replay.Code, replay.Body.String())
			assert.JSONEq(t, first.Body.String(), replay.Body.String())
			assert.Len(t, f.store.Appointments(), 1)
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-03-10T10:00:00Z")

	rw := f.do(t, http.MethodPatch, "/api/v1/appointments/status", map[string]string{"id": appt.ID, "status": "confirmed"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())

	rw = f.do(t, http.MethodPatch, "/api/v1/appointments/status", map[string]string{"id": appt.ID, "status": "scheduled"})
	assert.Equal(t, http.StatusConflict, rw.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, rw).Error)

	rw = f.do(t, http.MethodPatch, "/api/v1/appointments/status", map[string]string{"id": appt.ID, "status": "cancelled", "cancellationReason": "  owner sick  "})
	require.Equal(t, http.StatusOK, rw.Code)
	var out appointmentResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	assert.Equal(t, "cancelled", out.Status)
	assert.NotNil(t, out.CancelledAt)
	assert.False(t, out.IsLateCancel)

	rw = f.do(t, http.MethodPatch, "/api/v1/appointments/status", map[string]string{"id": unknownID, "status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = f.do(t, http.MethodPatch, "/api/v1/appointments/status", map[string]string{"id": "nope", "status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestDeleteAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "2026-03-10T10:00:00Z")

	rw := f.do(t, http.MethodDelete, "/api/v1/appointments?id="+appt.ID, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q,"deleted":true}`, appt.ID), rw.Body.String())

	rw = f.do(t, http.MethodDelete, "/api/v1/appointments?id="+appt.ID, nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = f.do(t, http.MethodDelete, "/api/v1/appointments", nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestNotesAndList(t *testing.T) {
	f := newFixture(t)
	early := f.book(t, "2026-03-10T10:00:00Z")
	late := f.book(t, "2026-03-12T10:00:00Z")

	rw := f.do(t, http.MethodPatch, "/api/v1/appointments/notes", map[string]string{"id": early.ID, "notes": "nervous around dryers"})
	require.Equal(t, http.StatusOK, rw.Code)

	rw = f.do(t, http.MethodGet, "/api/v1/appointments?limit=10", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var out listResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	require.Len(t, out.Appointments, 2)
	assert.Equal(t, late.ID, out.Appointments[0].ID)
	assert.Equal(t, "nervous around dryers", out.Appointments[1].Notes)

	rw = f.do(t, http.MethodGet, "/api/v1/appointments?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestInvoiceStatus(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-03-10T10:00:00Z")
	inv := f.store.Invoices()[0]

	rw := f.do(t, http.MethodPatch, "/api/v1/invoices/status", map[string]string{"id": inv.ID, "status": "sent"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	var out invoiceResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out))
	assert.Equal(t, "sent", out.Status)
	assert.Equal(t, "18.00", out.Total)

	rw = f.do(t, http.MethodPatch, "/api/v1/invoices/status", map[string]string{"id": inv.ID, "status": "draft"})
	assert.Equal(t, http.StatusConflict, rw.Code)

	rw = f.do(t, http.MethodPatch, "/api/v1/invoices/status", map[string]string{"id": inv.ID, "status": "void"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = f.do(t, http.MethodPatch, "/api/v1/invoices/status", map[string]string{"id": unknownID, "status": "paid"})
	assert.Equal(t, http.StatusNotFound, rw.Code)
	assert.Equal(t, "invoice_not_found", decodeError(t, rw).Error)
}

func signedStripeEvent(t *testing.T, eventID, eventType string, metadata map[string]string) ([]byte, string) {
	t.Helper()
	now := time.Now().UTC()
	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     now.Unix(),
		"type":        eventType,
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": map[string]any{
				"id":       "pi_test_1",
				"object":   "payment_intent",
				"metadata": metadata,
			},
		},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: now,
		Scheme:    "v1",
	})
	return payload, signed.Header
}

func TestStripeWebhook(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-03-10T10:00:00Z")
	inv := f.store.Invoices()[0]

	payload, sig := signedStripeEvent(t, "evt_1", "payment_intent.succeeded", map[string]string{
		"business_id": businessID,
		"invoice_id":  inv.ID,
	})
	post := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", sig)
		rw := httptest.NewRecorder()
		f.mux.ServeHTTP(rw, req)
		return rw
	}

	rw := post(sig)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	assert.JSONEq(t, `{"status":"ok"}`, rw.Body.String())
	assert.Equal(t, model.InvoicePaid, f.store.Invoices()[0].Status)

	rw = post(sig)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, rw.Body.String())

	rw = post("t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, rw.Code)
	rw = post("")
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

type brokenStore struct{ *memory.Store }

func (brokenStore) Atomic(context.Context, func(context.Context, storage.Tx) error) error {
	return errors.New("pq: connection reset by peer at 10.1.2.3")
}

func TestStorageFailureDoesNotLeak(t *testing.T) {
	mem := memory.New()
	f := newFixtureWithStore(t, mem, brokenStore{mem})

	rw := f.do(t, http.MethodPost, "/api/v1/appointments", map[string]string{
		"clientId":  f.demo.ClientID,
		"subjectId": f.demo.SubjectID,
		"serviceId": f.demo.ServiceID,
		"startTime": "2026-03-10T10:00:00Z",
	})
	assert.Equal(t, http.StatusInternalServerError, rw.Code)
	body := decodeError(t, rw)
	assert.Equal(t, "storage_error", body.Error)
	assert.Equal(t, "internal error", body.Message)
	assert.NotContains(t, rw.Body.String(), "10.1.2.3")
}
