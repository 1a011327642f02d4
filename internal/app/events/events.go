package events

import (
	"context"
	"time"

	"campuschat/internal/domain/chat"
)

// Event names published by the client.
const (
	NameUnreadChanged = "chat.unread_changed"
	NameMessageSent   = "chat.message_sent"
	NameSessionLost   = "chat.session_lost"
)

// Event is a client-side notification. Aggregate is the conversation id, or
// the reporting component for session-level events.
type Event interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	Name      string    `json:"-"`
	Aggregate string    `json:"-"`
	Time      time.Time `json:"-"`
}

func (e BaseEvent) EventName() string {
	return e.Name
}

func (e BaseEvent) AggregateID() string {
	return e.Aggregate
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Time
}

// UnreadChanged fires when a conversation gained unread messages between two
// applied directory refreshes.
type UnreadChanged struct {
	BaseEvent
	ConversationID chat.ID `json:"conversation_id"`
	ListingID      chat.ID `json:"post_id"`
	Previous       int     `json:"previous"`
	Current        int     `json:"current"`
	Preview        string  `json:"preview"`
}

func NewUnreadChanged(c chat.Conversation, previous int, at time.Time) UnreadChanged {
	return UnreadChanged{
		BaseEvent:      BaseEvent{Name: NameUnreadChanged, Aggregate: c.ID.String(), Time: at},
		ConversationID: c.ID,
		ListingID:      c.ListingID,
		Previous:       previous,
		Current:        c.UnreadCount,
		Preview:        c.Preview(),
	}
}

// MessageSent fires after the backend confirmed a message from this client.
type MessageSent struct {
	BaseEvent
	ConversationID chat.ID `json:"conversation_id"`
	MessageID      chat.ID `json:"message_id"`
	SenderID       chat.ID `json:"sender_id"`
}

func NewMessageSent(m chat.Message, at time.Time) MessageSent {
	return MessageSent{
		BaseEvent:      BaseEvent{Name: NameMessageSent, Aggregate: m.ConversationID.String(), Time: at},
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		SenderID:       m.SenderID,
	}
}

// SessionLost fires once per lost session.
type SessionLost struct {
	BaseEvent
	Source string `json:"source"`
}

func NewSessionLost(source string, at time.Time) SessionLost {
	return SessionLost{
		BaseEvent: BaseEvent{Name: NameSessionLost, Aggregate: source, Time: at},
		Source:    source,
	}
}

// Publisher fans client events out. Publishing is best-effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
