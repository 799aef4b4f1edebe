package queue

import (
	"context"
)

// EventPublisher delivers drink change events to interested consumers
type EventPublisher interface {
	// Publish sends the event. Delivery is best effort: callers log
	// failures and carry on.
	Publish(ctx context.Context, event *DrinkEvent) error

	// Close closes the publisher connection
	Close() error

	// HealthCheck verifies the publisher connection is healthy
	HealthCheck(ctx context.Context) error
}

// NoopPublisher discards events. It is used when no broker is configured.
type NoopPublisher struct{}

// Publish implements EventPublisher
func (NoopPublisher) Publish(context.Context, *DrinkEvent) error { return nil }

// Close implements EventPublisher
func (NoopPublisher) Close() error { return nil }

// HealthCheck implements EventPublisher
func (NoopPublisher) HealthCheck(context.Context) error { return nil }
