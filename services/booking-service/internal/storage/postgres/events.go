package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
)

type eventRepo struct {
	tx pgx.Tx
}

func (r eventRepo) Append(ctx context.Context, e model.Event) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO outbox_events
			(id, business_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
	`, e.ID, e.BusinessID, e.AggregateType, e.AggregateID, e.EventType, e.Payload, e.Traceparent, e.Tracestate, e.CreatedAt)
	return mapErr(err)
}

func (r eventRepo) ClaimUnpublished(ctx context.Context, limit int) ([]model.Event, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id::text, business_id::text, aggregate_type, aggregate_id::text, event_type, payload,
			COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload,
			&e.Traceparent, &e.Tracestate, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r eventRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.tx.Exec(ctx, `
		UPDATE outbox_events SET published_at = $2 WHERE id = ANY($1::uuid[])
	`, ids, at)
	return mapErr(err)
}
