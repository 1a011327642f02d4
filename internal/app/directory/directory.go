// Package directory keeps the viewer's conversation list fresh by polling.
//
// Conversations are shown in backend order (most recently active first); the
// client never re-sorts. Refreshes may overlap: each one carries a generation
// and a result is dropped when a newer refresh was issued after it started,
// so unread counts never regress to an older snapshot.
package directory

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

// DefaultInterval is the inbox poll period.
const DefaultInterval = 5 * time.Second

const source = "directory"

var (
	// ErrHalted is returned while polling is halted after a lost session.
	ErrHalted = errors.New("directory: halted until reset")
	// ErrSuperseded is returned for a refresh whose result was dropped
	// because a newer refresh was issued after it started.
	ErrSuperseded = errors.New("directory: refresh superseded")
)

// Lister is the backend call the directory needs.
type Lister interface {
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
}

// State of the directory view.
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
	Clock     clockwork.Clock
	Signal    authsignal.Reporter
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Snapshot is what a view renders.
type Snapshot struct {
	Conversations []chat.Conversation
	State         State
	Err           error
	Loaded        bool
}

// Directory owns the set of conversations currently known to the view.
type Directory struct {
	api       Lister
	interval  time.Duration
	clock     clockwork.Clock
	signal    authsignal.Reporter
	publisher events.Publisher
	logger    *slog.Logger

	focus   *poll.Trigger
	changes *poll.Trigger

	mu            sync.Mutex
	issued        uint64
	epoch         uint64
	conversations []chat.Conversation
	state         State
	lastErr       error
	loaded        bool
	halted        bool
}

// New builds a Directory over lister.
func New(lister Lister, cfg Config) *Directory {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
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
	return &Directory{
		api:       lister,
		interval:  interval,
		clock:     clock,
		signal:    cfg.Signal,
		publisher: publisher,
		logger:    logger.With("component", source),
		focus:     poll.NewTrigger(),
		changes:   poll.NewTrigger(),
	}
}

// Refresh fetches the full list and applies it unless a newer refresh was
// issued meanwhile. On failure the previously shown list is kept.
func (d *Directory) Refresh(ctx context.Context) ([]chat.Conversation, error) {
	return d.refresh(ctx, 0)
}

// refresh with a non-zero epoch drops its result once the Run that issued it
// has returned.
func (d *Directory) refresh(ctx context.Context, epoch uint64) ([]chat.Conversation, error) {
	d.mu.Lock()
	if d.halted {
		d.mu.Unlock()
		return nil, ErrHalted
	}
	d.issued++
	generation := d.issued
	if !d.loaded {
		d.state = StateLoading
	}
	d.mu.Unlock()

	conversations, err := d.api.ListConversations(ctx)

	d.mu.Lock()
	if epoch != 0 && epoch != d.epoch {
		d.mu.Unlock()
		return nil, ErrSuperseded
	}
	if api.IsUnauthorized(err) {
		d.haltLocked()
		d.mu.Unlock()
		d.changes.Fire()
		if d.signal != nil {
			d.signal.SessionLost(ctx, source)
		}
		return nil, err
	}
	if generation != d.issued {
		d.mu.Unlock()
		d.logger.Debug("dropping superseded refresh", "generation", generation)
		return nil, ErrSuperseded
	}
	if err != nil {
		d.state = StateErrored
		d.lastErr = err
		d.mu.Unlock()
		d.logger.Warn("refresh conversations failed", "error", err)
		d.changes.Fire()
		return nil, err
	}
	previous := d.conversations
	wasLoaded := d.loaded
	d.conversations = cloneConversations(conversations)
	d.state = StateLoaded
	d.lastErr = nil
	d.loaded = true
	d.mu.Unlock()

	d.changes.Fire()
	if wasLoaded {
		d.publishUnreadIncreases(ctx, previous, conversations)
	}
	return cloneConversations(conversations), nil
}

func (d *Directory) publishUnreadIncreases(ctx context.Context, previous, current []chat.Conversation) {
	before := make(map[chat.ID]int, len(previous))
	for _, c := range previous {
		before[c.ID] = c.UnreadCount
	}
	now := d.clock.Now()
	for _, c := range current {
		old := before[c.ID]
		if c.UnreadCount <= old {
			continue
		}
		if err := d.publisher.Publish(ctx, events.NewUnreadChanged(c, old, now)); err != nil {
			d.logger.Warn("publish unread change failed", "conversation_id", c.ID, "error", err)
		}
	}
}

func (d *Directory) haltLocked() {
	d.state = StateUnauthorized
	d.lastErr = api.ErrUnauthorized
	d.halted = true
}

// Run refreshes immediately, then on every interval and on Focus. It returns
// api.ErrUnauthorized once the session is lost, or ctx.Err().
func (d *Directory) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.halted {
		d.mu.Unlock()
		return ErrHalted
	}
	d.epoch++
	epoch := d.epoch
	stop := make(chan struct{})
	d.mu.Unlock()

	var stopOnce sync.Once
	loop := poll.Loop{
		Clock:    d.clock,
		Interval: d.interval,
		Focus:    d.focus.C(),
		Stop:     stop,
		Tick: func(ctx context.Context) {
			// In-flight requests are not aborted by teardown; the epoch
			// check drops their results instead.
			_, err := d.refresh(context.WithoutCancel(ctx), epoch)
			if api.IsUnauthorized(err) || errors.Is(err, ErrHalted) {
				stopOnce.Do(func() { close(stop) })
			}
		},
	}
	err := loop.Run(ctx)

	d.mu.Lock()
	if d.epoch == epoch {
		d.epoch++
	}
	d.mu.Unlock()

	if errors.Is(err, poll.ErrStopped) {
		return api.ErrUnauthorized
	}
	return err
}

// Focus requests an immediate refresh from a running loop.
func (d *Directory) Focus() {
	d.focus.Fire()
}

// Changes signals after every applied refresh, failure or halt.
func (d *Directory) Changes() <-chan struct{} {
	return d.changes.C()
}

// Reset clears the halted state after re-authentication. The last list is
// kept until the next successful refresh.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted = false
	if d.state == StateUnauthorized {
		d.state = StateIdle
		if d.loaded {
			d.state = StateLoaded
		}
		d.lastErr = nil
	}
}

// Halted reports whether polling stopped on a lost session.
func (d *Directory) Halted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.halted
}

// Snapshot returns a copy of the current view state.
func (d *Directory) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Conversations: cloneConversations(d.conversations),
		State:         d.state,
		Err:           d.lastErr,
		Loaded:        d.loaded,
	}
}

// TotalUnread sums unread counts across the shown conversations.
func (s Snapshot) TotalUnread() int {
	total := 0
	for _, c := range s.Conversations {
		if n, ok := c.UnreadBadge(); ok {
			total += n
		}
	}
	return total
}

func cloneConversations(in []chat.Conversation) []chat.Conversation {
	if in == nil {
		return nil
	}
	out := make([]chat.Conversation, len(in))
	copy(out, in)
	return out
}
