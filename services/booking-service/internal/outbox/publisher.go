package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/groomdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/groomdesk/libs/otel"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	store     storage.Store
	writer    MessageWriter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	pollEvery time.Duration
	batchSize int
	now       func() time.Time
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(store storage.Store, writer MessageWriter, logger *slog.Logger, m *metrics.Metrics, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		store:     store,
		writer:    writer,
		logger:    logger,
		metrics:   m,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

// NewKafkaWriter builds the writer used in production; topics come from each message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishBatch relays one batch and marks it published in the same unit. A
// write failure leaves the whole batch for the next tick.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	var types []string
	err := p.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		events, err := tx.Events().ClaimUnpublished(ctx, p.batchSize)
		if err != nil || len(events) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(events))
		ids := make([]string, 0, len(events))
		for _, e := range events {
			msgCtx := otelx.TraceContext{Traceparent: e.Traceparent, Tracestate: e.Tracestate}.Attach(ctx)
			msgs = append(msgs, kafkax.NewMessage(msgCtx, e.ID, e.EventType, e.AggregateID, e.Payload))
			ids = append(ids, e.ID)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		if err := tx.Events().MarkPublished(ctx, ids, p.now().UTC()); err != nil {
			return err
		}
		types = types[:0]
		for _, e := range events {
			types = append(types, e.EventType)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, t := range types {
		p.metrics.EventPublished(t)
	}
	return len(types), nil
}
