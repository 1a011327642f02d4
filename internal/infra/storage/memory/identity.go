package memory

import (
	"context"
	"sync"

	"campuschat/internal/app/identity"
	"campuschat/internal/domain/chat"
)

// IdentityStore keeps identities in memory. Values do not survive a restart.
type IdentityStore struct {
	mu    sync.RWMutex
	items map[string]chat.ID
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{items: make(map[string]chat.ID)}
}

func (s *IdentityStore) Load(ctx context.Context, key string) (chat.ID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.items[key]
	return id, ok, nil
}

func (s *IdentityStore) Save(ctx context.Context, key string, id chat.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = id
	return nil
}

var _ identity.Store = (*IdentityStore)(nil)
