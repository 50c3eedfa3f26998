package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/groomdesk/libs/httpx"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/billing"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
)

type InvoiceHandler struct {
	billing *billing.Service
	logger  *slog.Logger
}

func NewInvoiceHandler(b *billing.Service, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{billing: b, logger: logger}
}

type invoiceStatusRequest struct {
	ID     string `json:"id" validate:"required,uuid"`
	Status string `json:"status" validate:"required,oneof=draft sent paid cancelled"`
}

func (h *InvoiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tc, ok := caller(w, r)
	if !ok {
		return
	}

	var req invoiceStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	inv, err := h.billing.SetStatus(r.Context(), tc, req.ID, model.InvoiceStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toInvoice(inv))
}
