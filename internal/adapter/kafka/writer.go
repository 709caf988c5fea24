package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/config"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/couchcryptid/insurance-maps/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

// Event types carried in the event_type header.
const (
	EventTradeUpdated = "trade_updated"
	EventTradeDeleted = "trade_deleted"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces dataset change events to a Kafka topic.
// It implements ingest.Publisher.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// PublishTradeUpdated announces a completed import. Messages are keyed by
// trade so a trade's events stay ordered within one partition.
func (p *Publisher) PublishTradeUpdated(ctx context.Context, ev domain.TradeUpdated) error {
	msg, err := serializeToMessage(EventTradeUpdated, ev.Trade, ev.ImportedAt, ev)
	if err != nil {
		return err
	}
	return p.write(ctx, EventTradeUpdated, msg)
}

// PublishTradeDeleted announces that a trade's dataset was removed.
func (p *Publisher) PublishTradeDeleted(ctx context.Context, ev domain.TradeDeleted) error {
	msg, err := serializeToMessage(EventTradeDeleted, ev.Trade, ev.DeletedAt, ev)
	if err != nil {
		return err
	}
	return p.write(ctx, EventTradeDeleted, msg)
}

// Close flushes pending writes and closes the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) write(ctx context.Context, eventType string, msg kafkago.Message) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = p.writer.WriteMessages(ctx, msg); err == nil {
			p.metrics.EventsPublished.WithLabelValues(eventType).Inc()
			return nil
		}
		p.logger.Warn("publish failed", "error", err, "event_type", eventType,
			"key", string(msg.Key), "attempt", attempt)
		if attempt == maxAttempts || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	p.metrics.PublishErrors.Inc()
	return fmt.Errorf("publish %s for %s: %w", eventType, msg.Key, err)
}

// serializeToMessage marshals an event into a Kafka message keyed by trade.
func serializeToMessage(eventType string, trade domain.Trade, at time.Time, event any) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s event: %w", eventType, err)
	}
	return kafkago.Message{
		Key:   []byte(trade),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "occurred_at", Value: []byte(at.UTC().Format(time.RFC3339))},
		},
	}, nil
}
