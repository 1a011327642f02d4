package ginserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gin "github.com/gin-gonic/gin"

	"campuschat/internal/domain/chat"
	"campuschat/internal/infra/obs"
	"campuschat/internal/infra/storage/memory"
)

// StubConfig seeds a development backend. Tokens maps access tokens to user
// ids; Listings maps listing ids to seller ids.
type StubConfig struct {
	Env        string
	Tokens     map[string]string
	Listings   map[string]string
	CookieName string
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewStub builds the routed development backend and returns its store so
// callers can seed or inspect state.
func NewStub(cfg StubConfig) (*gin.Engine, *memory.ChatRepository, error) {
	handlers, store, err := NewStubHandlers(cfg)
	if err != nil {
		return nil, nil, err
	}
	router := NewRouter(cfg.Env, obs.Middleware{Logger: cfg.Logger}, obs.HealthHandlers{}, handlers)
	return router, store, nil
}

// NewStubHandlers seeds an in-memory store and returns the handlers serving it.
func NewStubHandlers(cfg StubConfig) (Handlers, *memory.ChatRepository, error) {
	store := memory.NewChatRepository(cfg.Now)
	for listingID, sellerID := range cfg.Listings {
		if err := store.SaveListing(context.Background(), chat.ID(listingID), chat.ID(sellerID)); err != nil {
			return Handlers{}, nil, fmt.Errorf("seed listing %q: %w", listingID, err)
		}
	}
	tokens := make(map[string]chat.ID, len(cfg.Tokens))
	for token, userID := range cfg.Tokens {
		tokens[token] = chat.ID(userID)
	}
	handlers := Handlers{
		Chat:    ChatHandler{Store: store, Logger: cfg.Logger},
		Account: AccountHandler{},
		AuthMiddleware: TokenAuth{
			Tokens:     tokens,
			CookieName: cfg.CookieName,
			Logger:     cfg.Logger,
		}.Handle,
	}
	return handlers, store, nil
}
