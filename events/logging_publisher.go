package events

import (
	"context"
	"log/slog"
)

// LoggingPublisher stands in for Kafka when no brokers are configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, msg Message) error {
	p.logger.InfoContext(ctx, "event published",
		"module", "events.publisher",
		"operation", "publish",
		"outcome", "success",
		"topic", msg.Topic,
		"partition_key", msg.Key,
		"event_id", msg.Headers[HeaderEventID],
		"payload_bytes", len(msg.Payload),
	)
	return nil
}

// HeaderEventID carries the audit event id so consumers can drop redeliveries.
const HeaderEventID = "event-id"
