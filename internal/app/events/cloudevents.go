package events

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// DefaultSource identifies this client in encoded events.
const DefaultSource = "app://campuschat"

// Encode wraps an event in a CloudEvents 1.0 JSON envelope and returns the
// payload with its transport headers.
func Encode(event Event, source string) ([]byte, map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	if source == "" {
		source = DefaultSource
	}
	envelope := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            event.EventName() + ".v1",
		"source":          source,
		"subject":         event.AggregateID(),
		"time":            event.OccurredAt(),
		"datacontenttype": "application/json",
		"data":            json.RawMessage(data),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      event.EventName() + ".v1",
	}
	return payload, headers, nil
}

// Topic maps an event name to its topic: "chat.unread_changed" becomes
// "<prefix>chat.events.v1".
func Topic(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}
