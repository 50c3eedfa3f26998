package model

import "time"

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderCancelled ReminderStatus = "cancelled"
	ReminderSent      ReminderStatus = "sent"
)

const (
	ReminderTypePreVisit = "24h_pre_visit"
	ReminderChannelEmail = "email"
)

type Reminder struct {
	ID            string
	AppointmentID string
	BusinessID    string
	Type          string
	Channel       string
	ScheduledFor  time.Time
	Status        ReminderStatus
	SentAt        *time.Time
	CreatedAt     time.Time
}
