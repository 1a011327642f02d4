// Package authsignal carries the single "session lost" signal every polling
// component and the initiator report through. The surrounding application
// watches Lost and sends the user back to authentication.
package authsignal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campuschat/internal/app/events"
)

// Reporter is what components depend on.
type Reporter interface {
	SessionLost(ctx context.Context, source string)
}

// Signal latches on the first report until Reset.
type Signal struct {
	mu        sync.Mutex
	lost      chan struct{}
	fired     bool
	source    string
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an armed Signal. publisher and logger may be nil.
func New(publisher events.Publisher, logger *slog.Logger) *Signal {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Signal{
		lost:      make(chan struct{}),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SessionLost records the loss. Only the first report per armed period is
// logged, published and closes Lost.
func (s *Signal) SessionLost(ctx context.Context, source string) {
	s.mu.Lock()
	if s.fired {
		s.mu.Unlock()
		return
	}
	s.fired = true
	s.source = source
	close(s.lost)
	s.mu.Unlock()

	s.logger.Warn("session lost", "source", source)
	if err := s.publisher.Publish(ctx, events.NewSessionLost(source, s.now())); err != nil {
		s.logger.Warn("publish session lost failed", "source", source, "error", err)
	}
}

// Lost is closed once the session is lost.
func (s *Signal) Lost() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// Source names the component that first reported the loss, or "".
func (s *Signal) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// IsLost reports whether the signal has fired.
func (s *Signal) IsLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Reset re-arms the signal after re-authentication.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fired {
		return
	}
	s.fired = false
	s.source = ""
	s.lost = make(chan struct{})
}

var _ Reporter = (*Signal)(nil)
