package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuschat/internal/infra/config"
	ginserver "campuschat/internal/infra/http/gin"
	"campuschat/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadStub()
	if err != nil {
		obs.NewLogger("dev").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	if len(cfg.StubTokens) == 0 {
		logger.Warn("STUB_TOKENS is empty; every request will be unauthorized")
	}

	handlers, _, err := ginserver.NewStubHandlers(ginserver.StubConfig{
		Env:        cfg.Env,
		Tokens:     cfg.StubTokens,
		Listings:   cfg.StubListings,
		CookieName: cfg.AuthCookie,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("stub setup failed", "error", err)
		os.Exit(1)
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: func() error { return nil },
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("chat stub starting", "addr", cfg.StubHTTPAddr, "listings", len(cfg.StubListings))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("chat stub stopped")
}
