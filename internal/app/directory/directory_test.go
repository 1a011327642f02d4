package directory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"campuschat/internal/app/authsignal"
	"campuschat/internal/app/directory"
	"campuschat/internal/app/events"
	"campuschat/internal/domain/chat"
	"campuschat/internal/infra/api"
	"campuschat/internal/infra/http/gin/stubtest"
)

// scriptedLister answers each call with respond(call), where call counts from 1.
type scriptedLister struct {
	mu      sync.Mutex
	calls   int
	called  chan int
	respond func(call int) ([]chat.Conversation, error)
}

func newScriptedLister(respond func(call int) ([]chat.Conversation, error)) *scriptedLister {
	return &scriptedLister{called: make(chan int, 64), respond: respond}
}

func (l *scriptedLister) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	l.mu.Lock()
	l.calls++
	call := l.calls
	l.mu.Unlock()
	l.called <- call
	return l.respond(call)
}

func (l *scriptedLister) waitCall(t *testing.T) int {
	t.Helper()
	select {
	case call := <-l.called:
		return call
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ListConversations")
		return 0
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) named(name string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func conv(id chat.ID, unread int) chat.Conversation {
	return chat.Conversation{ID: id, ListingID: "77", BuyerID: "1", SellerID: "2", UnreadCount: unread}
}

func TestDirectoryUnreadClearsAfterMarkRead(t *testing.T) {
	backend := stubtest.New(t,
		map[string]string{"buyer-token": "1", "seller-token": "2"},
		map[string]string{"77": "2"})
	ctx := context.Background()
	buyer := backend.Client(t, "buyer-token")
	seller := backend.Client(t, "seller-token")

	conversation, err := buyer.CreateConversation(ctx, "77")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	for _, body := range []string{"hi", "still available?", "I can pay cash"} {
		if _, err := buyer.SendMessage(ctx, conversation.ID, body); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	dir := directory.New(seller, directory.Config{})
	list, err := dir.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d conversations, want 1", len(list))
	}
	if n, shown := list[0].UnreadBadge(); !shown || n != 3 {
		t.Fatalf("badge = %d/%v, want 3 shown", n, shown)
	}
	if got := dir.Snapshot().TotalUnread(); got != 3 {
		t.Errorf("TotalUnread = %d, want 3", got)
	}

	if err := seller.MarkRead(ctx, conversation.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	list, err = dir.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, shown := list[0].UnreadBadge(); shown {
		t.Errorf("badge still shown with %d unread", list[0].UnreadCount)
	}
}

func TestDirectoryKeepsBackendOrder(t *testing.T) {
	lister := newScriptedLister(func(int) ([]chat.Conversation, error) {
		return []chat.Conversation{conv("9", 0), conv("2", 1), conv("5", 0)}, nil
	})
	dir := directory.New(lister, directory.Config{})
	list, err := dir.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	want := []chat.ID{"9", "2", "5"}
	for i, c := range list {
		if c.ID != want[i] {
			t.Fatalf("order = %v, want %v", list, want)
		}
	}
}

func TestDirectoryDropsSupersededRefresh(t *testing.T) {
	release := make(chan struct{})
	lister := newScriptedLister(func(call int) ([]chat.Conversation, error) {
		if call == 1 {
			<-release
			return []chat.Conversation{conv("1", 5)}, nil
		}
		return []chat.Conversation{conv("1", 0)}, nil
	})
	dir := directory.New(lister, directory.Config{})
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := dir.Refresh(ctx)
		slow <- err
	}()
	lister.waitCall(t)

	if _, err := dir.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	lister.waitCall(t)
	close(release)

	select {
	case err := <-slow:
		if !errors.Is(err, directory.ErrSuperseded) {
			t.Fatalf("slow Refresh err = %v, want ErrSuperseded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("slow Refresh never returned")
	}
	snap := dir.Snapshot()
	if snap.Conversations[0].UnreadCount != 0 {
		t.Errorf("stale refresh overwrote newer state: %+v", snap.Conversations)
	}
}

func TestDirectoryFailureKeepsPreviousList(t *testing.T) {
	boom := &api.Failure{StatusCode: 502, Message: "Request failed: 502"}
	lister := newScriptedLister(func(call int) ([]chat.Conversation, error) {
		if call == 1 {
			return []chat.Conversation{conv("1", 2)}, nil
		}
		return nil, boom
	})
	dir := directory.New(lister, directory.Config{})
	ctx := context.Background()

	if _, err := dir.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if _, err := dir.Refresh(ctx); !errors.Is(err, boom) {
		t.Fatalf("second Refresh err = %v, want %v", err, boom)
	}
	snap := dir.Snapshot()
	if snap.State != directory.StateErrored || !errors.Is(snap.Err, boom) {
		t.Errorf("snapshot state = %v err = %v", snap.State, snap.Err)
	}
	if len(snap.Conversations) != 1 || snap.Conversations[0].UnreadCount != 2 {
		t.Errorf("previous list lost: %+v", snap.Conversations)
	}
}

func TestDirectoryUnauthorizedHaltsUntilReset(t *testing.T) {
	unauthorized := true
	var mu sync.Mutex
	lister := newScriptedLister(func(int) ([]chat.Conversation, error) {
		mu.Lock()
		defer mu.Unlock()
		if unauthorized {
			return nil, api.ErrUnauthorized
		}
		return []chat.Conversation{conv("1", 0)}, nil
	})
	signal := authsignal.New(nil, nil)
	dir := directory.New(lister, directory.Config{Signal: signal})
	ctx := context.Background()

	if _, err := dir.Refresh(ctx); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("Refresh err = %v, want ErrUnauthorized", err)
	}
	if !signal.IsLost() || signal.Source() != "directory" {
		t.Errorf("signal lost=%v source=%q", signal.IsLost(), signal.Source())
	}
	if !dir.Halted() || dir.Snapshot().State != directory.StateUnauthorized {
		t.Fatalf("directory should be halted, state %v", dir.Snapshot().State)
	}
	if _, err := dir.Refresh(ctx); !errors.Is(err, directory.ErrHalted) {
		t.Fatalf("Refresh while halted err = %v, want ErrHalted", err)
	}
	if err := dir.Run(ctx); !errors.Is(err, directory.ErrHalted) {
		t.Fatalf("Run while halted err = %v, want ErrHalted", err)
	}

	mu.Lock()
	unauthorized = false
	mu.Unlock()
	dir.Reset()
	if _, err := dir.Refresh(ctx); err != nil {
		t.Fatalf("Refresh after Reset: %v", err)
	}
	if dir.Snapshot().State != directory.StateLoaded {
		t.Errorf("state after Reset = %v", dir.Snapshot().State)
	}
}

func TestDirectoryRunPollsOnIntervalAndFocus(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lister := newScriptedLister(func(int) ([]chat.Conversation, error) {
		return []chat.Conversation{conv("1", 0)}, nil
	})
	dir := directory.New(lister, directory.Config{Clock: clock, Interval: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- dir.Run(ctx) }()

	lister.waitCall(t)
	blockUntil(t, clock)
	clock.Advance(5 * time.Second)
	lister.waitCall(t)
	dir.Focus()
	lister.waitCall(t)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDirectoryRunStopsOnUnauthorized(t *testing.T) {
	lister := newScriptedLister(func(int) ([]chat.Conversation, error) {
		return nil, api.ErrUnauthorized
	})
	signal := authsignal.New(nil, nil)
	dir := directory.New(lister, directory.Config{Clock: clockwork.NewFakeClock(), Signal: signal})

	done := make(chan error, 1)
	go func() { done <- dir.Run(context.Background()) }()
	select {
	case err := <-done:
		if !errors.Is(err, api.ErrUnauthorized) {
			t.Fatalf("Run err = %v, want ErrUnauthorized", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept polling after unauthorized")
	}
	select {
	case <-signal.Lost():
	default:
		t.Error("session-lost signal not raised")
	}
}

func TestDirectoryIgnoresUnauthorizedAfterRunReturns(t *testing.T) {
	release := make(chan struct{})
	lister := newScriptedLister(func(int) ([]chat.Conversation, error) {
		<-release
		return nil, api.ErrUnauthorized
	})
	signal := authsignal.New(nil, nil)
	dir := directory.New(lister, directory.Config{Clock: clockwork.NewFakeClock(), Signal: signal})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- dir.Run(ctx) }()
	lister.waitCall(t)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	close(release)
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if dir.Halted() || signal.IsLost() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if dir.Halted() {
		t.Error("late 401 halted a directory whose loop had returned")
	}
	if signal.IsLost() {
		t.Error("late 401 raised session lost")
	}
	if state := dir.Snapshot().State; state == directory.StateUnauthorized {
		t.Errorf("state = %v", state)
	}
}

func TestDirectoryPublishesUnreadIncreases(t *testing.T) {
	counts := []int{1, 3, 3, 0}
	lister := newScriptedLister(func(call int) ([]chat.Conversation, error) {
		return []chat.Conversation{conv("1", counts[call-1])}, nil
	})
	publisher := &recordingPublisher{}
	dir := directory.New(lister, directory.Config{Publisher: publisher})
	for range counts {
		if _, err := dir.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}
	published := publisher.named(events.NameUnreadChanged)
	if len(published) != 1 {
		t.Fatalf("published %d unread events, want 1", len(published))
	}
	change := published[0].(events.UnreadChanged)
	if change.Previous != 1 || change.Current != 3 || change.ConversationID != "1" {
		t.Errorf("event = %+v", change)
	}
}

func TestDirectoryChangesNotifies(t *testing.T) {
	lister := newScriptedLister(func(int) ([]chat.Conversation, error) { return nil, nil })
	dir := directory.New(lister, directory.Config{})
	if _, err := dir.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	select {
	case <-dir.Changes():
	default:
		t.Fatal("Changes not signalled after refresh")
	}
	if snap := dir.Snapshot(); !snap.Loaded || snap.State != directory.StateLoaded {
		t.Errorf("snapshot = %+v", snap)
	}
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		clock.BlockUntil(1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ticker never registered")
	}
}
