// Package invoicing formats and allocates per-business, per-year invoice numbers.
package invoicing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

const prefix = "INV"

// FormatNumber renders INV-<year>-<seq>, padding seq to at least three digits.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

// ParseNumber is the inverse of FormatNumber.
func ParseNumber(number string) (year, seq int, ok bool) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq <= 0 || len(parts[2]) < 3 {
		return 0, 0, false
	}
	return year, seq, true
}

// Allocate reserves the next number for businessID in year. It must run inside
// the unit that inserts the invoice: the reservation is released on rollback.
func Allocate(ctx context.Context, tx storage.Tx, businessID string, year int) (string, error) {
	seq, err := tx.Invoices().NextSequence(ctx, businessID, year)
	if err != nil {
		return "", err
	}
	return FormatNumber(year, seq), nil
}
