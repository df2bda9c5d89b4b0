package events

import (
	"context"

	"go.uber.org/multierr"

	"smart-mirror/internal/application"
	"smart-mirror/internal/domain"
)

// Multi publishes every event to each bus in turn. A failing bus does not
// stop delivery to the others.
type Multi []application.EventPublisher

func (m Multi) Publish(ctx context.Context, event domain.Event, data any) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, event, data))
	}
	return err
}
