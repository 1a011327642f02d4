package kafka

import (
	"context"
	"fmt"

	"campuschat/internal/app/events"
)

// EventPublisher encodes client events as CloudEvents and writes them to
// "<prefix>chat.events.v1", keyed by conversation so per-conversation order holds.
type EventPublisher struct {
	Producer    *Producer
	TopicPrefix string
	Source      string
}

func (p EventPublisher) Publish(ctx context.Context, event events.Event) error {
	payload, headers, err := events.Encode(event, p.Source)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	topic := events.Topic(p.TopicPrefix, event.EventName())
	if err := p.Producer.Publish(ctx, topic, event.AggregateID(), payload, headers); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.EventName(), topic, err)
	}
	return nil
}

var _ events.Publisher = EventPublisher{}
