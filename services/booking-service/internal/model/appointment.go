package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

var AppointmentStatuses = []AppointmentStatus{
	StatusScheduled,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

func (s AppointmentStatus) Valid() bool {
	for _, known := range AppointmentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status transition is permitted.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Appointment struct {
	ID                 string
	BusinessID         string
	ClientID           string
	SubjectID          string
	ServiceID          string
	StartTime          time.Time
	EndTime            time.Time
	Status             AppointmentStatus
	TotalPrice         decimal.Decimal
	Notes              string
	CancelledAt        *time.Time
	CancellationReason *string
	IsLateCancel       bool
	DeletedAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Hydrated on booking results only.
	Client  *Client
	Subject *Subject
	Service *Service
}
