package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

const invoiceColumns = `id::text, business_id::text, client_id::text, appointment_id::text, invoice_number,
	subtotal::text, tax_rate::text, tax_amount::text, total::text, status, due_date, paid_at, created_at, updated_at`

type invoiceRepo struct {
	tx pgx.Tx
}

// NextSequence bumps the (business, year) counter row. The first allocation of
// a year seeds the counter from the highest number already issued. The row
// stays locked until the transaction ends, so concurrent bookings of the same
// business queue here and a rollback returns the number.
func (r invoiceRepo) NextSequence(ctx context.Context, businessID string, year int) (int, error) {
	pattern := fmt.Sprintf("^INV-%d-[0-9]+$", year)
	var seq int
	err := r.tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (business_id, year, last_value)
		VALUES ($1, $2, COALESCE((
			SELECT MAX(split_part(invoice_number, '-', 3)::int)
			FROM invoices
			WHERE business_id = $1 AND invoice_number ~ $3
		), 0) + 1)
		ON CONFLICT (business_id, year)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1,
		              updated_at = now()
		RETURNING last_value
	`, businessID, year, pattern).Scan(&seq)
	return seq, mapErr(err)
}

func (r invoiceRepo) Insert(ctx context.Context, inv model.Invoice) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO invoices
			(id, business_id, client_id, appointment_id, invoice_number, subtotal, tax_rate, tax_amount,
			 total, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12, $13)
	`, inv.ID, inv.BusinessID, inv.ClientID, inv.AppointmentID, inv.InvoiceNumber,
		inv.Subtotal.String(), inv.TaxRate.String(), inv.TaxAmount.String(), inv.Total.String(),
		string(inv.Status), inv.DueDate, inv.CreatedAt, inv.UpdatedAt)
	return mapErr(err)
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, businessID, id string) (model.Invoice, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, id, businessID)
	inv, err := scanInvoice(row)
	return inv, mapErr(err)
}

func (r invoiceRepo) GetByAppointmentForUpdate(ctx context.Context, businessID, appointmentID string) (model.Invoice, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE appointment_id = $1 AND business_id = $2
		FOR UPDATE
	`, appointmentID, businessID)
	inv, err := scanInvoice(row)
	return inv, mapErr(err)
}

func (r invoiceRepo) UpdateStatus(ctx context.Context, inv model.Invoice) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE invoices
		SET status = $3, paid_at = $4, updated_at = $5
		WHERE id = $1 AND business_id = $2
	`, inv.ID, inv.BusinessID, string(inv.Status), inv.PaidAt, inv.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (model.Invoice, error) {
	var (
		inv                        model.Invoice
		status                     string
		subtotal, rate, tax, total string
	)
	err := row.Scan(
		&inv.ID,
		&inv.BusinessID,
		&inv.ClientID,
		&inv.AppointmentID,
		&inv.InvoiceNumber,
		&subtotal,
		&rate,
		&tax,
		&total,
		&status,
		&inv.DueDate,
		&inv.PaidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return model.Invoice{}, err
	}
	inv.Status = model.InvoiceStatus(status)
	if inv.Subtotal, err = parseDecimal(subtotal); err != nil {
		return model.Invoice{}, err
	}
	if inv.TaxRate, err = parseDecimal(rate); err != nil {
		return model.Invoice{}, err
	}
	if inv.TaxAmount, err = parseDecimal(tax); err != nil {
		return model.Invoice{}, err
	}
	if inv.Total, err = parseDecimal(total); err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}
