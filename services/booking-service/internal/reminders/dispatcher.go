// Package reminders turns pending reminders that have come due into
// reminder.due events for the notification side to deliver.
package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

type Dispatcher struct {
	store     storage.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewDispatcher(store storage.Store, logger *slog.Logger, m *metrics.Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Dispatcher{
		store:     store,
		logger:    logger,
		metrics:   m,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(ctx); err != nil {
				d.logger.Error("reminder dispatch failed", "err", err)
			}
		}
	}
}

type reminderDue struct {
	ReminderID    string    `json:"reminder_id"`
	AppointmentID string    `json:"appointment_id"`
	BusinessID    string    `json:"business_id"`
	Type          string    `json:"type"`
	Channel       string    `json:"channel"`
	ScheduledFor  time.Time `json:"scheduled_for"`
}

// DispatchDue claims one batch of due reminders, emits an event for each and
// marks them sent, all in one unit. Reminders cancelled before they come due
// are never claimed.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.now().UTC()
	var sent int
	err := d.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		sent = 0
		due, err := tx.Reminders().ClaimDue(ctx, now, d.batchSize)
		if err != nil {
			return err
		}
		for _, r := range due {
			if err := outbox.Append(ctx, tx, r.BusinessID, outbox.AggregateReminder, r.ID, model.EventReminderDue, reminderDue{
				ReminderID:    r.ID,
				AppointmentID: r.AppointmentID,
				BusinessID:    r.BusinessID,
				Type:          r.Type,
				Channel:       r.Channel,
				ScheduledFor:  r.ScheduledFor.UTC(),
			}, now); err != nil {
				return err
			}
			if err := tx.Reminders().MarkSent(ctx, r.ID, now); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		d.metrics.RemindersDispatched(sent)
		d.logger.Info("reminders dispatched", "count", sent)
	}
	return sent, nil
}
