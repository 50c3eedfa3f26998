package handlers

import (
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
)

type clientResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type subjectResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species,omitempty"`
}

type serviceResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"durationMinutes"`
}

type appointmentResponse struct {
	ID                 string           `json:"id"`
	BusinessID         string           `json:"businessId"`
	ClientID           string           `json:"clientId"`
	SubjectID          string           `json:"subjectId"`
	ServiceID          string           `json:"serviceId"`
	StartTime          time.Time        `json:"startTime"`
	EndTime            time.Time        `json:"endTime"`
	Status             string           `json:"status"`
	TotalPrice         string           `json:"totalPrice"`
	Notes              string           `json:"notes"`
	CancelledAt        *time.Time       `json:"cancelledAt,omitempty"`
	CancellationReason *string          `json:"cancellationReason,omitempty"`
	IsLateCancel       bool             `json:"isLateCancel"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	Client             *clientResponse  `json:"client,omitempty"`
	Subject            *subjectResponse `json:"subject,omitempty"`
	Service            *serviceResponse `json:"service,omitempty"`
}

func toAppointment(a model.Appointment) appointmentResponse {
	out := appointmentResponse{
		ID:                 a.ID,
		BusinessID:         a.BusinessID,
		ClientID:           a.ClientID,
		SubjectID:          a.SubjectID,
		ServiceID:          a.ServiceID,
		StartTime:          a.StartTime.UTC(),
		EndTime:            a.EndTime.UTC(),
		Status:             string(a.Status),
		TotalPrice:         a.TotalPrice.StringFixed(2),
		Notes:              a.Notes,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		IsLateCancel:       a.IsLateCancel,
		CreatedAt:          a.CreatedAt.UTC(),
		UpdatedAt:          a.UpdatedAt.UTC(),
	}
	if c := a.Client; c != nil {
		out.Client = &clientResponse{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
	}
	if s := a.Subject; s != nil {
		out.Subject = &subjectResponse{ID: s.ID, Name: s.Name, Species: s.Species}
	}
	if s := a.Service; s != nil {
		out.Service = &serviceResponse{ID: s.ID, Name: s.Name, Price: s.Price.StringFixed(2), DurationMinutes: s.DurationMinutes}
	}
	return out
}

type invoiceResponse struct {
	ID            string     `json:"id"`
	BusinessID    string     `json:"businessId"`
	ClientID      string     `json:"clientId"`
	AppointmentID *string    `json:"appointmentId,omitempty"`
	InvoiceNumber string     `json:"invoiceNumber"`
	Subtotal      string     `json:"subtotal"`
	TaxRate       string     `json:"taxRate"`
	TaxAmount     string     `json:"taxAmount"`
	Total         string     `json:"total"`
	Status        string     `json:"status"`
	DueDate       time.Time  `json:"dueDate"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toInvoice(inv model.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:            inv.ID,
		BusinessID:    inv.BusinessID,
		ClientID:      inv.ClientID,
		AppointmentID: inv.AppointmentID,
		InvoiceNumber: inv.InvoiceNumber,
		Subtotal:      inv.Subtotal.StringFixed(2),
		TaxRate:       inv.TaxRate.StringFixed(2),
		TaxAmount:     inv.TaxAmount.StringFixed(2),
		Total:         inv.Total.StringFixed(2),
		Status:        string(inv.Status),
		DueDate:       inv.DueDate.UTC(),
		PaidAt:        inv.PaidAt,
		UpdatedAt:     inv.UpdatedAt.UTC(),
	}
}
