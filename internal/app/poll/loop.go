// Package poll drives a refresh function on a fixed interval and whenever the
// consuming view regains attention.
//
// Each tick runs in its own goroutine, so a slow request occupies one cycle
// while the next tick proceeds independently. There is no backoff and no
// timeout: the next scheduled tick is the retry.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrStopped is returned by Run when the Stop channel closes.
	ErrStopped = errors.New("poll: stopped")
	// ErrNoTick is returned by Run when Tick is nil.
	ErrNoTick = errors.New("poll: tick function required")
)

// Loop fires Tick immediately, then every Interval, and once per signal on
// Focus. Run returns when ctx is done or Stop is closed.
type Loop struct {
	Clock    clockwork.Clock
	Interval time.Duration
	Focus    <-chan struct{}
	Stop     <-chan struct{}
	Tick     func(ctx context.Context)
}

func (l Loop) Run(ctx context.Context) error {
	if l.Tick == nil {
		return ErrNoTick
	}
	clock := l.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(l.interval())
	defer ticker.Stop()

	fire := func() { go l.Tick(ctx) }
	fire()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.Stop:
			return ErrStopped
		case <-ticker.Chan():
			fire()
		case <-l.Focus:
			fire()
		}
	}
}

func (l Loop) interval() time.Duration {
	if l.Interval <= 0 {
		return 5 * time.Second
	}
	return l.Interval
}

// Trigger is a coalescing wake-up: fires sent while one is still pending are
// merged. Components use it for "view regained attention" and for "state
// changed" notifications.
type Trigger struct {
	ch chan struct{}
}

func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, 1)}
}

func (t *Trigger) Fire() {
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

func (t *Trigger) C() <-chan struct{} {
	return t.ch
}
