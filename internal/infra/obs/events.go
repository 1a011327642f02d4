package obs

import (
	"context"
	"log/slog"

	"campuschat/internal/app/events"
)

// EventLogger publishes client events to the log. It is the default sink
// when no broker is configured.
type EventLogger struct {
	Logger *slog.Logger
}

func (p EventLogger) Publish(ctx context.Context, event events.Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event",
		"name", event.EventName(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	)
	return nil
}

var _ events.Publisher = EventLogger{}
