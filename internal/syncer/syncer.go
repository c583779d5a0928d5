// Package syncer binds push notifications to cache freshness.
//
// The controller owns the policy of "trust local vs. trust server vs.
// refetch": notification payloads are never merged into the cache;
// each one invalidates the bound keys and schedules a background
// refetch through the key's registered loader, so the REST API stays
// authoritative. Notifications for the same key arriving within one
// flush tick collapse into a single refetch.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/ohq-tools/ohqtui/internal/cache"
	"github.com/ohq-tools/ohqtui/internal/live"
)

// defaultFlushTick is the debounce window. A burst of notifications
// (a staff member clearing a queue produces one per question) costs
// one refetch per affected key.
const defaultFlushTick = 50 * time.Millisecond

// Subscriber is the slice of the push client the controller needs.
// *live.Client implements it.
type Subscriber interface {
	Subscribe(sub live.Subscription, fn func(live.Notification)) (cancel func())
}

// Controller routes change notifications into cache invalidation and
// revalidation.
type Controller struct {
	store *cache.Store
	subs  Subscriber
	tick  time.Duration

	mu      sync.Mutex
	loaders map[string]cache.Loader
	derived map[string][]string
	bound   map[string]int
	dirty   map[string]struct{}
	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// New builds a controller over the given store and push client.
func New(store *cache.Store, subs Subscriber) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:   store,
		subs:    subs,
		tick:    defaultFlushTick,
		loaders: make(map[string]cache.Loader),
		derived: make(map[string][]string),
		bound:   make(map[string]int),
		dirty:   make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.flushLoop()
	return c
}

// Register associates a cache key with the loader used for its
// background refetches.
func (c *Controller) Register(key string, loader cache.Loader) {
	c.mu.Lock()
	c.loaders[key] = loader
	c.mu.Unlock()
}

// Derive adds a cross-invalidation edge: whenever parentKey is
// refetched due to a notification, derivedKeys are revalidated too.
// This serves reads that have no subscription of their own, like the
// student's position, which changes whenever the parent question
// collection does.
func (c *Controller) Derive(parentKey string, derivedKeys ...string) {
	c.mu.Lock()
	c.derived[parentKey] = append(c.derived[parentKey], derivedKeys...)
	c.mu.Unlock()
}

// Bind subscribes the filter tuple on the push channel and keeps the
// given cache keys fresh: every notification invalidates them and
// schedules a debounced refetch. The returned cancel drops the
// subscription; refetches already in flight complete but their
// results are only applied while the key is still bound elsewhere or
// unpended in the cache.
func (c *Controller) Bind(sub live.Subscription, keys ...string) (cancel func()) {
	c.mu.Lock()
	for _, key := range keys {
		c.bound[key]++
	}
	c.mu.Unlock()

	cancelSub := c.subs.Subscribe(sub, func(live.Notification) {
		c.markDirty(keys)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelSub()
			c.mu.Lock()
			for _, key := range keys {
				if c.bound[key] > 0 {
					c.bound[key]--
				}
				if c.bound[key] == 0 {
					delete(c.bound, key)
					delete(c.dirty, key)
				}
			}
			c.mu.Unlock()
		})
	}
}

// PokeBound schedules a refetch for every key with at least one live
// binding. The fallback refresher uses this while the push channel is
// down: bound views keep polling, unbound keys stay quiet.
func (c *Controller) PokeBound() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.bound))
	for key := range c.bound {
		keys = append(keys, key)
	}
	c.mu.Unlock()
	c.markDirty(keys)
}

// Poke schedules a refetch for key as if a notification had arrived.
// Used after mutations that change server-computed fields on sibling
// resources (a claimed question moves the queue's counts).
func (c *Controller) Poke(key string) {
	c.markDirty([]string{key})
}

// Close stops the flush loop. Pending refetches are abandoned.
func (c *Controller) Close() {
	c.cancel()
}

func (c *Controller) markDirty(keys []string) {
	c.mu.Lock()
	for _, key := range keys {
		if _, ok := c.loaders[key]; !ok {
			continue
		}
		c.dirty[key] = struct{}{}
		for _, derived := range c.derived[key] {
			if _, ok := c.loaders[derived]; ok {
				c.dirty[derived] = struct{}{}
			}
		}
	}
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// flushLoop drains the dirty set once per tick: each dirty key is
// invalidated and refetched exactly once no matter how many
// notifications accumulated for it.
func (c *Controller) flushLoop() {
	timer := time.NewTimer(c.tick)
	defer timer.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		timer.Reset(c.tick)
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
		}

		c.flush()
	}
}

func (c *Controller) flush() {
	c.mu.Lock()
	batch := make(map[string]cache.Loader, len(c.dirty))
	for key := range c.dirty {
		// A key with no remaining binding was cancelled after its
		// notification arrived; drop it rather than refetch for a
		// consumer that no longer exists.
		if c.bound[key] == 0 && !c.isDerivedLocked(key) {
			continue
		}
		if loader, ok := c.loaders[key]; ok {
			batch[key] = loader
		}
	}
	c.dirty = make(map[string]struct{})
	c.mu.Unlock()

	for key, loader := range batch {
		c.store.Invalidate(key)
		go c.store.Refresh(c.ctx, key, loader)
	}
}

// isDerivedLocked reports whether key appears as a derived target of
// any edge. Derived keys have no binding of their own; their
// freshness rides on the parent's.
func (c *Controller) isDerivedLocked(key string) bool {
	for _, targets := range c.derived {
		for _, t := range targets {
			if t == key {
				return true
			}
		}
	}
	return false
}
