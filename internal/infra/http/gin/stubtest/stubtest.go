// Package stubtest starts the development chat backend on a loopback
// listener for tests and hands out authenticated API clients.
package stubtest

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"campuschat/internal/infra/api"
	ginserver "campuschat/internal/infra/http/gin"
	"campuschat/internal/infra/storage/memory"
)

// Backend is a running development backend.
type Backend struct {
	Server *httptest.Server
	Store  *memory.ChatRepository

	mu  sync.Mutex
	now time.Time
}

// New starts a backend seeded with tokens (token → user id) and listings
// (listing id → seller id). Every stored timestamp is one second after the
// previous one so activity ordering is deterministic.
func New(t testing.TB, tokens, listings map[string]string) *Backend {
	t.Helper()
	b := &Backend{now: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)}
	router, store, err := ginserver.NewStub(ginserver.StubConfig{
		Env:      "test",
		Tokens:   tokens,
		Listings: listings,
		Now:      b.tick,
	})
	if err != nil {
		t.Fatalf("start stub backend: %v", err)
	}
	b.Store = store
	b.Server = httptest.NewServer(router)
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) tick() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = b.now.Add(time.Second)
	return b.now
}

// Client returns an API client that authenticates with the session cookie.
// An empty token yields an anonymous client.
func (b *Backend) Client(t testing.TB, token string) *api.Client {
	t.Helper()
	client, err := api.NewClient(api.Config{
		BaseURL:    b.Server.URL,
		HTTPClient: b.Server.Client(),
		Credential: api.CookieCredential{Token: token},
	})
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}
	return client
}
