package policy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Rules are the per-business knobs the booking and lifecycle engines read.
type Rules struct {
	ReminderLead        time.Duration
	LateCancelThreshold time.Duration
	TaxRatePercent      decimal.Decimal
	InvoiceDueIn        time.Duration
}

func DefaultRules() Rules {
	return Rules{
		ReminderLead:        24 * time.Hour,
		LateCancelThreshold: 24 * time.Hour,
		TaxRatePercent:      decimal.NewFromInt(20),
		InvoiceDueIn:        30 * 24 * time.Hour,
	}
}

type Provider interface {
	Rules(ctx context.Context, businessID string) (Rules, error)
}

type staticProvider struct {
	rules Rules
}

// NewStaticProvider serves the same rules to every business. Zero fields fall
// back to DefaultRules.
func NewStaticProvider(rules Rules) Provider {
	def := DefaultRules()
	if rules.ReminderLead <= 0 {
		rules.ReminderLead = def.ReminderLead
	}
	if rules.LateCancelThreshold <= 0 {
		rules.LateCancelThreshold = def.LateCancelThreshold
	}
	if rules.TaxRatePercent.IsNegative() {
		rules.TaxRatePercent = def.TaxRatePercent
	}
	if rules.InvoiceDueIn <= 0 {
		rules.InvoiceDueIn = def.InvoiceDueIn
	}
	return &staticProvider{rules: rules}
}

func (p *staticProvider) Rules(_ context.Context, _ string) (Rules, error) {
	return p.rules, nil
}
