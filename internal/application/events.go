package application

import (
	"context"

	"smart-mirror/internal/domain"
)

// EventPublisher broadcasts fire-and-forget notifications to peripherals.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event, data any) error
}

type NoopPublisher struct{}

func (n *NoopPublisher) Publish(_ context.Context, _ domain.Event, _ any) error {
	return nil
}
