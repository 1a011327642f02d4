package identity

import (
	"context"
	"log/slog"
	"sync"

	"campuschat/internal/domain/chat"
)

// Key is the storage key of the persisted identity.
const Key = "me_id"

// Store persists the identity across process lifetimes. Load reports false
// when nothing is stored under key.
type Store interface {
	Load(ctx context.Context, key string) (chat.ID, bool, error)
	Save(ctx context.Context, key string, id chat.ID) error
}

// Resolver answers "which participant am I". It is a cache, never a source
// of truth: the only input is the sender id of a message the server
// confirmed this user just sent.
type Resolver struct {
	mu     sync.Mutex
	cached chat.ID
	looked bool
	store  Store
	logger *slog.Logger
}

// NewResolver builds a Resolver over store. A nil store keeps the identity
// for this process only.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Get returns the in-process identity, then the persisted one, else unknown.
// The store is consulted at most once per Resolver; after that only Remember
// changes the answer.
func (r *Resolver) Get(ctx context.Context) chat.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cached.IsZero() {
		return chat.KnownIdentity(r.cached)
	}
	if r.store == nil || r.looked {
		return chat.UnknownIdentity
	}
	r.looked = true
	id, ok, err := r.store.Load(ctx, Key)
	if err != nil {
		r.logger.Warn("load identity failed", "error", err)
		return chat.UnknownIdentity
	}
	if !ok || id.IsZero() {
		return chat.UnknownIdentity
	}
	r.cached = id
	return chat.KnownIdentity(id)
}

// Remember records the server-confirmed sender id of a message this user
// sent. The in-process value is updated even when persisting fails.
func (r *Resolver) Remember(ctx context.Context, id chat.ID) error {
	if id.IsZero() {
		return nil
	}
	r.mu.Lock()
	r.cached = id
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	if err := r.store.Save(ctx, Key, id); err != nil {
		r.logger.Warn("persist identity failed", "id", id, "error", err)
		return err
	}
	return nil
}
