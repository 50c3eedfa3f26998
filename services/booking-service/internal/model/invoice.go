package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

type Invoice struct {
	ID            string
	BusinessID    string
	ClientID      string
	AppointmentID *string
	InvoiceNumber string
	Subtotal      decimal.Decimal
	TaxRate       decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
	Status        InvoiceStatus
	DueDate       time.Time
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Amounts computes tax and total for subtotal at ratePercent, rounded to cents.
func Amounts(subtotal, ratePercent decimal.Decimal) (tax, total decimal.Decimal) {
	tax = subtotal.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(2)
	return tax, subtotal.Add(tax)
}
