package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID         string
	BusinessID string
	Name       string
	Email      string
	Phone      string
	DeletedAt  *time.Time
}

// Subject is the animal (or other resource) an appointment is for.
type Subject struct {
	ID        string
	ClientID  string
	Name      string
	Species   string
	DeletedAt *time.Time
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	Price           decimal.Decimal
	DurationMinutes int
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
