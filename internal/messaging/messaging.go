package messaging

import (
	"context"
	"log/slog"
)

// Topics the order workflow publishes to once a transaction has committed.
const (
	TopicOrderPlaced        = "orders.placed"
	TopicOrderStatusChanged = "orders.status_changed"
	TopicOrderCancelled     = "orders.cancelled"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
	Close() error
}

type logPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a Publisher that only logs events. It backs BROKER=none.
func NewLogPublisher(logger *slog.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.logger.InfoContext(ctx, "Event published", "topic", topic, "key", key, "event", event)
	return nil
}

func (p *logPublisher) Close() error {
	return nil
}
