package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/groomdesk/libs/httpx"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type AppointmentHandler struct {
	booking   *booking.Service
	lifecycle *lifecycle.Service
	logger    *slog.Logger
}

func NewAppointmentHandler(b *booking.Service, l *lifecycle.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{booking: b, lifecycle: l, logger: logger}
}

type createAppointmentRequest struct {
	ClientID  string `json:"clientId" validate:"required,uuid"`
	SubjectID string `json:"subjectId" validate:"required,uuid"`
	ServiceID string `json:"serviceId" validate:"required,uuid"`
	StartTime string `json:"startTime" validate:"required"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type updateStatusRequest struct {
	ID                 string  `json:"id" validate:"required,uuid"`
	Status             string  `json:"status" validate:"required"`
	CancellationReason *string `json:"cancellationReason" validate:"omitempty,max=500"`
}

type updateNotesRequest struct {
	ID    string `json:"id" validate:"required,uuid"`
	Notes string `json:"notes" validate:"max=2000"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type listResponse struct {
	Appointments []appointmentResponse `json:"appointments"`
}

// Create books an appointment. A replayed Idempotency-Key returns the
// original appointment with the same status code.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc, ok := caller(w, r)
	if !ok {
		return
	}

	var req createAppointmentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		writeError(w, r, h.logger, apperr.Invalid("startTime must be an RFC3339 timestamp"))
		return
	}

	appt, err := h.booking.Book(r.Context(), tc, booking.Request{
		ClientID:       req.ClientID,
		SubjectID:      req.SubjectID,
		ServiceID:      req.ServiceID,
		StartTime:      start,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointment(appt))
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tc, ok := caller(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	appt, err := h.lifecycle.Transition(r.Context(), tc, lifecycle.TransitionRequest{
		AppointmentID:      req.ID,
		Target:             model.AppointmentStatus(strings.TrimSpace(req.Status)),
		CancellationReason: req.CancellationReason,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(appt))
}

func (h *AppointmentHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	tc, ok := caller(w, r)
	if !ok {
		return
	}

	var req updateNotesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	appt, err := h.lifecycle.UpdateNotes(r.Context(), tc, req.ID, req.Notes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(appt))
}

// Delete soft-deletes the appointment named by the id query parameter.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc, ok := caller(w, r)
	if !ok {
		return
	}

	q := struct {
		ID string `json:"id" validate:"required,uuid"`
	}{ID: strings.TrimSpace(r.URL.Query().Get("id"))}
	if err := check(q); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.lifecycle.Delete(r.Context(), tc, q.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deleteResponse{ID: q.ID, Deleted: true})
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, ok := caller(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, h.logger, apperr.Invalid("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	appts, err := h.lifecycle.List(r.Context(), tc, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := listResponse{Appointments: make([]appointmentResponse, 0, len(appts))}
	for _, a := range appts {
		out.Appointments = append(out.Appointments, toAppointment(a))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
