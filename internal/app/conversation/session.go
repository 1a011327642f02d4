// Package conversation manages one open conversation: it polls recent
// messages, sends new ones and advances the read cursor.
//
// The message list shown is always a backend snapshot, optionally followed by
// messages this session sent after it. A send in flight suppresses poll ticks,
// and a load is dropped if a send completed or a newer load was issued while
// it was outstanding, so a confirmed message never disappears from view.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"campuschat/internal/app/authsignal"
	"campuschat/internal/app/events"
	"campuschat/internal/app/poll"
	"campuschat/internal/domain/chat"
	"campuschat/internal/infra/api"
)

const (
	// DefaultInterval is the message poll period.
	DefaultInterval = 4 * time.Second
	// DefaultLimit bounds each page of recent messages.
	DefaultLimit = 50
)

const source = "conversation"

var (
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("conversation: session closed")
	// ErrHalted is returned after the session was lost; it is terminal.
	ErrHalted = errors.New("conversation: session lost")
	// ErrStale is returned for a load whose result was dropped.
	ErrStale = errors.New("conversation: load superseded")
)

// API is the slice of the transport a session uses.
type API interface {
	ListMessages(ctx context.Context, conversationID chat.ID, limit int) ([]chat.Message, error)
	SendMessage(ctx context.Context, conversationID chat.ID, body string) (chat.Message, error)
	MarkRead(ctx context.Context, conversationID chat.ID) error
}

// Identity resolves and records who "me" is.
type Identity interface {
	Get(ctx context.Context) chat.Identity
	Remember(ctx context.Context, id chat.ID) error
}

// State of a session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateErrored
	StateUnauthorized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateErrored:
		return "errored"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Config wires optional collaborators. Zero values are usable.
type Config struct {
	Interval  time.Duration
	Limit     int
	Clock     clockwork.Clock
	Identity  Identity
	Signal    authsignal.Reporter
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Snapshot is what a view renders.
type Snapshot struct {
	ConversationID chat.ID
	Messages       []chat.Message
	State          State
	Err            error
	Me             chat.Identity
}

// Session is bound to a single conversation id.
type Session struct {
	id        chat.ID
	api       API
	identity  Identity
	interval  time.Duration
	limit     int
	clock     clockwork.Clock
	signal    authsignal.Reporter
	publisher events.Publisher
	logger    *slog.Logger

	focus    *poll.Trigger
	changes  *poll.Trigger
	stop     chan struct{}
	stopOnce sync.Once

	mu             sync.Mutex
	messages       []chat.Message
	state          State
	lastErr        error
	loadsIssued    uint64
	sendsCompleted uint64
	sendsInFlight  int
	closed         bool
}

// New binds a session to conversationID.
func New(conversationID chat.ID, client API, cfg Config) *Session {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        conversationID,
		api:       client,
		identity:  cfg.Identity,
		interval:  interval,
		limit:     limit,
		clock:     clock,
		signal:    cfg.Signal,
		publisher: publisher,
		logger:    logger.With("component", source, "conversation_id", conversationID),
		focus:     poll.NewTrigger(),
		changes:   poll.NewTrigger(),
		stop:      make(chan struct{}),
	}
}

// ID returns the bound conversation id.
func (s *Session) ID() chat.ID {
	return s.id
}

// LoadRecent fetches the latest limit messages (the configured default when
// limit <= 0) and replaces the shown list with them.
func (s *Session) LoadRecent(ctx context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = s.limit
	}
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.loadsIssued++
	generation := s.loadsIssued
	sendsBefore := s.sendsCompleted
	if s.state == StateIdle {
		s.state = StateLoading
	}
	s.mu.Unlock()

	messages, err := s.api.ListMessages(ctx, s.id, limit)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if api.IsUnauthorized(err) {
		s.mu.Unlock()
		s.terminate(ctx)
		return nil, err
	}
	if generation != s.loadsIssued || sendsBefore != s.sendsCompleted {
		s.mu.Unlock()
		s.logger.Debug("dropping stale load", "generation", generation)
		return nil, ErrStale
	}
	if err != nil {
		s.state = StateErrored
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Warn("load messages failed", "error", err)
		s.changes.Fire()
		return nil, err
	}
	s.messages = cloneMessages(messages)
	s.state = StateLoaded
	s.lastErr = nil
	s.mu.Unlock()

	s.changes.Fire()
	s.MarkRead(ctx)
	return cloneMessages(messages), nil
}

// Send posts body exactly as given. Blank bodies are rejected before any
// request. On success the server-confirmed message is appended and its sender
// becomes the remembered identity.
func (s *Session) Send(ctx context.Context, body string) (chat.Message, error) {
	if err := chat.ValidateBody(body); err != nil {
		return chat.Message{}, err
	}
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return chat.Message{}, err
	}
	s.sendsInFlight++
	s.mu.Unlock()

	message, err := s.api.SendMessage(ctx, s.id, body)

	s.mu.Lock()
	s.sendsInFlight--
	closed := s.closed
	if err == nil && !closed {
		s.sendsCompleted++
		if !containsMessage(s.messages, message.ID) {
			s.messages = append(cloneMessages(s.messages), message)
		}
	}
	s.mu.Unlock()

	if api.IsUnauthorized(err) {
		if !closed {
			s.terminate(ctx)
		}
		return chat.Message{}, err
	}
	if err != nil {
		s.logger.Warn("send message failed", "error", err)
		return chat.Message{}, err
	}

	// Identity outlives the session, so a confirmed sender is recorded even
	// after teardown.
	s.remember(ctx, message.SenderID)
	if closed {
		return chat.Message{}, ErrClosed
	}
	s.changes.Fire()
	if err := s.publisher.Publish(ctx, events.NewMessageSent(message, s.clock.Now())); err != nil {
		s.logger.Warn("publish message sent failed", "message_id", message.ID, "error", err)
	}
	s.MarkRead(ctx)
	return message, nil
}

// MarkRead advances the read cursor. Every failure, including a lost
// session, is logged and swallowed.
func (s *Session) MarkRead(ctx context.Context) {
	if err := s.api.MarkRead(ctx, s.id); err != nil {
		s.logger.Debug("mark read failed", "error", err)
	}
}

func (s *Session) remember(ctx context.Context, senderID chat.ID) {
	if s.identity == nil || senderID.IsZero() {
		return
	}
	if err := s.identity.Remember(ctx, senderID); err != nil {
		s.logger.Warn("remember identity failed", "sender_id", senderID, "error", err)
	}
}

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.state == StateUnauthorized {
		return ErrHalted
	}
	return nil
}

func (s *Session) terminate(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateUnauthorized {
		s.mu.Unlock()
		return
	}
	s.state = StateUnauthorized
	s.lastErr = api.ErrUnauthorized
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stop) })
	s.changes.Fire()
	if s.signal != nil {
		s.signal.SessionLost(ctx, source)
	}
}

// Run loads immediately, then every interval and on Focus. Ticks are skipped
// while a send is in flight. Run returns api.ErrUnauthorized once the session
// is lost, ErrClosed after Close, or ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	loop := poll.Loop{
		Clock:    s.clock,
		Interval: s.interval,
		Focus:    s.focus.C(),
		Stop:     s.stop,
		Tick: func(ctx context.Context) {
			if s.sending() {
				s.logger.Debug("skipping poll during send")
				return
			}
			// Teardown does not abort the request; the liveness check in
			// LoadRecent drops its result.
			_, _ = s.LoadRecent(context.WithoutCancel(ctx), s.limit)
		},
	}
	err := loop.Run(ctx)
	if errors.Is(err, poll.ErrStopped) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return ErrClosed
		}
		return api.ErrUnauthorized
	}
	return err
}

func (s *Session) sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendsInFlight > 0
}

// Focus requests an immediate load from a running loop.
func (s *Session) Focus() {
	s.focus.Fire()
}

// Changes signals after every applied load, failure, send or loss.
func (s *Session) Changes() <-chan struct{} {
	return s.changes.C()
}

// Close tears the session down: polling stops and every later completion is
// discarded. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
}

// IsMine reports whether m was sent by the resolved identity. With an
// unknown identity nothing is mine.
func (s *Session) IsMine(m chat.Message) bool {
	return s.me().IsMine(m)
}

func (s *Session) me() chat.Identity {
	if s.identity == nil {
		return chat.UnknownIdentity
	}
	return s.identity.Get(context.Background())
}

// Snapshot returns a copy of the current view state.
func (s *Session) Snapshot() Snapshot {
	me := s.me()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ConversationID: s.id,
		Messages:       cloneMessages(s.messages),
		State:          s.state,
		Err:            s.lastErr,
		Me:             me,
	}
}

func containsMessage(messages []chat.Message, id chat.ID) bool {
	if id.IsZero() {
		return false
	}
	for _, m := range messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func cloneMessages(in []chat.Message) []chat.Message {
	if in == nil {
		return nil
	}
	out := make([]chat.Message, len(in))
	copy(out, in)
	return out
}
