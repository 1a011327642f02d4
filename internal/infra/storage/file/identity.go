package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"campuschat/internal/app/identity"
	"campuschat/internal/domain/chat"
)

// IdentityStore persists identities as a small JSON object on disk, one
// entry per key. Writes replace the file atomically; last writer wins.
type IdentityStore struct {
	mu   sync.Mutex
	path string
}

// NewIdentityStore returns a store backed by path. The file and its parent
// directory are created on first Save.
func NewIdentityStore(path string) (*IdentityStore, error) {
	if path == "" {
		return nil, errors.New("file: identity path required")
	}
	return &IdentityStore{path: path}, nil
}

// DefaultPath is identity.json under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("file: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "campuschat", "identity.json"), nil
}

func (s *IdentityStore) Load(ctx context.Context, key string) (chat.ID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	id, ok := values[key]
	return id, ok, nil
}

func (s *IdentityStore) Save(ctx context.Context, key string, id chat.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking every future save.
		values = map[string]chat.ID{}
	}
	values[key] = id
	return s.write(values)
}

func (s *IdentityStore) read() (map[string]chat.ID, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]chat.ID{}, nil
		}
		return nil, fmt.Errorf("file: read identity: %w", err)
	}
	values := map[string]chat.ID{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("file: decode identity: %w", err)
	}
	return values, nil
}

func (s *IdentityStore) write(values map[string]chat.ID) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("file: create identity dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".identity-*.json")
	if err != nil {
		return fmt.Errorf("file: create temp identity: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: write identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: close identity: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: replace identity: %w", err)
	}
	return nil
}

var _ identity.Store = (*IdentityStore)(nil)
