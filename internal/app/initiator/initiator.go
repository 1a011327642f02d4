// Package initiator finds or creates the conversation between the current
// buyer and a listing's seller.
package initiator

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"campuschat/internal/app/authsignal"
	"campuschat/internal/domain/chat"
	"campuschat/internal/infra/api"
)

const source = "initiator"

// Creator is the backend call the initiator needs. The backend owns
// create-or-resume semantics.
type Creator interface {
	CreateConversation(ctx context.Context, listingID chat.ID) (chat.Conversation, error)
}

// Navigator opens a conversation view.
type Navigator interface {
	Open(ctx context.Context, conversationID chat.ID)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, conversationID chat.ID)

func (f NavigatorFunc) Open(ctx context.Context, conversationID chat.ID) {
	f(ctx, conversationID)
}

type Config struct {
	Navigator Navigator
	Signal    authsignal.Reporter
	Logger    *slog.Logger
}

// Initiator serializes contact attempts per listing.
type Initiator struct {
	api       Creator
	navigator Navigator
	signal    authsignal.Reporter
	logger    *slog.Logger
	group     singleflight.Group

	mu      sync.Mutex
	waiting map[string]int
}

func New(creator Creator, cfg Config) *Initiator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Initiator{
		api:       creator,
		navigator: cfg.Navigator,
		signal:    cfg.Signal,
		logger:    logger.With("component", source),
		waiting:   make(map[string]int),
	}
}

// StartOrResume returns the conversation id for listingID and navigates to
// it. Concurrent calls for the same listing share one request, one
// navigation and one result. Failures are returned as-is and never retried.
func (i *Initiator) StartOrResume(ctx context.Context, listingID chat.ID) (chat.ID, error) {
	if err := chat.ValidateListing(listingID); err != nil {
		return "", err
	}
	key := listingID.String()
	i.enter(key)
	defer i.leave(key)

	// The request is shared, so one caller cancelling must not fail the rest.
	v, err, shared := i.group.Do(key, func() (any, error) {
		return i.create(context.WithoutCancel(ctx), listingID)
	})
	if shared {
		i.logger.Debug("joined in-flight contact", "listing_id", listingID)
	}
	if err != nil {
		return "", err
	}
	return v.(chat.ID), nil
}

func (i *Initiator) create(ctx context.Context, listingID chat.ID) (chat.ID, error) {
	conversation, err := i.api.CreateConversation(ctx, listingID)
	if api.IsUnauthorized(err) {
		if i.signal != nil {
			i.signal.SessionLost(ctx, source)
		}
		return "", err
	}
	if err != nil {
		i.logger.Warn("contact seller failed", "listing_id", listingID, "error", err)
		return "", err
	}
	if conversation.ID.IsZero() {
		return "", &api.Failure{Message: "Conversation could not be opened"}
	}
	if i.navigator != nil {
		i.navigator.Open(ctx, conversation.ID)
	}
	return conversation.ID, nil
}

// InFlight reports whether a contact attempt for listingID is outstanding,
// so a view can disable its button.
func (i *Initiator) InFlight(listingID chat.ID) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.waiting[listingID.String()] > 0
}

func (i *Initiator) enter(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.waiting[key]++
}

func (i *Initiator) leave(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.waiting[key]--; i.waiting[key] <= 0 {
		delete(i.waiting, key)
	}
}
