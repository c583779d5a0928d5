package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ohq-tools/ohqtui/internal/cache"
	"github.com/ohq-tools/ohqtui/internal/live"
)

// fakeSubs records subscriptions and lets tests inject notifications
// without a websocket.
type fakeSubs struct {
	mu       sync.Mutex
	handlers map[live.Subscription]func(live.Notification)
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{handlers: make(map[live.Subscription]func(live.Notification))}
}

func (f *fakeSubs) Subscribe(sub live.Subscription, fn func(live.Notification)) func() {
	f.mu.Lock()
	f.handlers[sub] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.handlers, sub)
		f.mu.Unlock()
	}
}

func (f *fakeSubs) push(sub live.Subscription, note live.Notification) {
	f.mu.Lock()
	fn := f.handlers[sub]
	f.mu.Unlock()
	if fn != nil {
		fn(note)
	}
}

func countingLoader(calls *atomic.Int32, value any) cache.Loader {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		return value, nil
	}
}

var questionSub = live.Subscription{Model: "ohq.Question", Property: "queue_id", Value: 1}

func TestNotificationInvalidatesAndRefetches(t *testing.T) {
	store := cache.New()
	subs := newFakeSubs()
	c := New(store, subs)
	defer c.Close()

	var calls atomic.Int32
	c.Register("questions", countingLoader(&calls, "fresh"))
	cancel := c.Bind(questionSub, "questions")
	defer cancel()

	subs.push(questionSub, live.Notification{Model: "ohq.Question", ID: 5, Kind: live.Updated})

	waitFor(t, func() bool {
		v, _, ok := store.Get("questions")
		return ok && v == "fresh"
	})
	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestBurstCollapsesIntoOneRefetch(t *testing.T) {
	store := cache.New()
	subs := newFakeSubs()
	c := New(store, subs)
	defer c.Close()

	var calls atomic.Int32
	c.Register("questions", countingLoader(&calls, "fresh"))
	cancel := c.Bind(questionSub, "questions")
	defer cancel()

	// A queue clear produces one deletion notification per question.
	for i := int64(1); i <= 10; i++ {
		subs.push(questionSub, live.Notification{Model: "ohq.Question", ID: i, Kind: live.Deleted})
	}

	waitFor(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times for a 10-notification burst, want 1", n)
	}
}

func TestCancelledBindingDropsPendingNotifications(t *testing.T) {
	store := cache.New()
	subs := newFakeSubs()
	c := New(store, subs)
	defer c.Close()

	var calls atomic.Int32
	c.Register("questions", countingLoader(&calls, "fresh"))
	cancel := c.Bind(questionSub, "questions")

	subs.push(questionSub, live.Notification{Model: "ohq.Question", ID: 5, Kind: live.Updated})
	cancel()

	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("loader called %d times after cancel, want 0", n)
	}
}

func TestDeriveRevalidatesDependentKey(t *testing.T) {
	store := cache.New()
	subs := newFakeSubs()
	c := New(store, subs)
	defer c.Close()

	var questionCalls, positionCalls atomic.Int32
	c.Register("questions", countingLoader(&questionCalls, "qs"))
	c.Register("position", countingLoader(&positionCalls, 2))
	c.Derive("questions", "position")

	cancel := c.Bind(questionSub, "questions")
	defer cancel()

	// The position singleton has no subscription of its own; it rides
	// on the question collection's.
	subs.push(questionSub, live.Notification{Model: "ohq.Question", ID: 5, Kind: live.Updated})

	waitFor(t, func() bool {
		return questionCalls.Load() == 1 && positionCalls.Load() == 1
	})
}

func TestPokeIgnoresUnboundKeys(t *testing.T) {
	store := cache.New()
	subs := newFakeSubs()
	c := New(store, subs)
	defer c.Close()

	var calls atomic.Int32
	c.Register("queues", countingLoader(&calls, "qs"))

	c.Poke("queues")
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("loader called %d times for an unbound key, want 0", n)
	}
}

func TestPokeBoundRefreshesEveryBoundKey(t *testing.T) {
	store := cache.New()
	subs := newFakeSubs()
	c := New(store, subs)
	defer c.Close()

	var questionCalls, queueCalls, orphanCalls atomic.Int32
	c.Register("questions", countingLoader(&questionCalls, "qs"))
	c.Register("queues", countingLoader(&queueCalls, "queues"))
	c.Register("orphan", countingLoader(&orphanCalls, "never"))

	cancelQ := c.Bind(questionSub, "questions")
	defer cancelQ()
	queueSub := live.Subscription{Model: "ohq.Queue", Property: "id", Value: 1}
	cancelQu := c.Bind(queueSub, "queues")
	defer cancelQu()

	c.PokeBound()

	waitFor(t, func() bool {
		return questionCalls.Load() == 1 && queueCalls.Load() == 1
	})
	if n := orphanCalls.Load(); n != 0 {
		t.Errorf("unbound key refreshed %d times, want 0", n)
	}
}

func TestUnregisteredKeysAreIgnored(t *testing.T) {
	store := cache.New()
	subs := newFakeSubs()
	c := New(store, subs)
	defer c.Close()

	cancel := c.Bind(questionSub, "never-registered")
	defer cancel()

	subs.push(questionSub, live.Notification{Model: "ohq.Question", ID: 1, Kind: live.Created})
	time.Sleep(150 * time.Millisecond)
	// Nothing to assert beyond the absence of a panic: no loader
	// exists, so the notification must be dropped.
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
