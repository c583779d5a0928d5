package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the authoritative value for a key.
type Loader func(ctx context.Context) (any, error)

// entry is the cached state for one resource key.
type entry struct {
	value       any
	hasValue    bool
	lastUpdated time.Time
	stale       bool
	err         error

	// pending counts optimistic mutations awaiting server
	// confirmation. rollback holds the pre-mutation value so a failed
	// write restores it exactly.
	pending     int
	rollback    any
	hasRollback bool
}

// Store is a keyed cache of server-owned resources. Values enter
// through Fetch (authoritative load), MutateLocal (optimistic write),
// and Reconcile (server confirmation); Invalidate marks them stale
// without evicting so readers keep seeing data while a revalidation
// runs in the background.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	flight  singleflight.Group

	watchMu  sync.Mutex
	watchers map[chan string]struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entries:  make(map[string]*entry),
		watchers: make(map[chan string]struct{}),
	}
}

// Get returns the cached value without network access. The retained
// load error, if any, rides alongside: a key can hold both the last
// good value and the error from the most recent failed revalidation.
func (s *Store) Get(key string) (any, error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil, false
	}
	return e.value, e.err, e.hasValue
}

// Pending reports whether key has an optimistic mutation awaiting
// confirmation.
func (s *Store) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.pending > 0
}

// Stale reports whether key has been invalidated since its last
// authoritative load.
func (s *Store) Stale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return !ok || e.stale || !e.hasValue
}

// Fetch returns the cached value for key, loading it when absent.
// Concurrent calls for the same uncached key share one outstanding
// load. A stale entry is returned immediately while a single
// background revalidation refreshes it (stale-while-revalidate).
func (s *Store) Fetch(ctx context.Context, key string, loader Loader) (any, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && e.hasValue && !e.stale {
		value := e.value
		err := e.err
		s.mu.Unlock()
		return value, err
	}
	if ok && e.hasValue && e.stale {
		value := e.value
		s.mu.Unlock()
		go s.Refresh(context.WithoutCancel(ctx), key, loader)
		return value, nil
	}
	s.mu.Unlock()

	return s.load(ctx, key, loader)
}

// Refresh forces an authoritative load for key, deduplicated with any
// load already in flight. Used for background revalidation; errors are
// retained on the entry for the next reader.
func (s *Store) Refresh(ctx context.Context, key string, loader Loader) {
	_, _ = s.load(ctx, key, loader)
}

func (s *Store) load(ctx context.Context, key string, loader Loader) (any, error) {
	value, err, _ := s.flight.Do(key, func() (any, error) {
		return loader(ctx)
	})

	s.mu.Lock()
	e := s.ensureLocked(key)
	if err != nil {
		// Keep the last good value; retain the error so readers can
		// surface it. A stale error never blocks a later retry.
		e.err = err
		value, hasValue := e.value, e.hasValue
		s.mu.Unlock()
		s.notify(key)
		if hasValue {
			return value, err
		}
		return nil, err
	}
	if e.pending > 0 {
		// An optimistic write is still awaiting its confirmation;
		// applying this read now would clobber the optimistic value
		// with data from before the write. Reconcile settles it.
		prior := e.value
		s.mu.Unlock()
		return prior, nil
	}
	e.value = value
	e.hasValue = true
	e.err = nil
	e.stale = false
	e.lastUpdated = time.Now()
	s.mu.Unlock()
	s.notify(key)
	return value, nil
}

// MutateLocal applies an optimistic, purely local transformation and
// marks the entry pending. The pre-mutation value is remembered for
// Rollback. Updater receives the current value (nil when the key is
// empty) and returns the optimistic one.
func (s *Store) MutateLocal(key string, updater func(any) any) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	if e.pending == 0 {
		e.rollback = e.value
		e.hasRollback = e.hasValue
	}
	e.pending++
	e.value = updater(e.value)
	e.hasValue = true
	s.mu.Unlock()
	s.notify(key)
}

// Reconcile replaces the local value with the authoritative server
// value and clears the pending flag. ok=false removes the entry (the
// resource no longer exists server-side).
func (s *Store) Reconcile(key string, value any, ok bool) {
	s.mu.Lock()
	if !ok {
		delete(s.entries, key)
		s.mu.Unlock()
		s.notify(key)
		return
	}
	e := s.ensureLocked(key)
	e.value = value
	e.hasValue = true
	e.err = nil
	e.stale = false
	e.lastUpdated = time.Now()
	if e.pending > 0 {
		e.pending--
	}
	if e.pending == 0 {
		e.rollback = nil
		e.hasRollback = false
	}
	s.mu.Unlock()
	s.notify(key)
}

// ReconcileWith merges a server confirmation into the current value
// through fn and clears the pending flag. Used when the confirmation
// covers one element of a cached collection rather than the whole
// value.
func (s *Store) ReconcileWith(key string, fn func(any) any) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	e.value = fn(e.value)
	e.hasValue = true
	e.err = nil
	e.stale = false
	e.lastUpdated = time.Now()
	if e.pending > 0 {
		e.pending--
	}
	if e.pending == 0 {
		e.rollback = nil
		e.hasRollback = false
	}
	s.mu.Unlock()
	s.notify(key)
}

// Rollback restores the exact pre-mutation value after a failed
// optimistic write and clears the pending flag.
func (s *Store) Rollback(key string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	if e.pending > 0 {
		e.pending--
	}
	if e.pending == 0 {
		if e.hasRollback {
			e.value = e.rollback
			e.hasValue = true
		} else {
			delete(s.entries, key)
		}
		e.rollback = nil
		e.hasRollback = false
	}
	s.mu.Unlock()
	s.notify(key)
}

// Invalidate marks the entry stale. Readers are not blocked: the next
// Fetch serves the stale value and triggers a background refetch.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		e.stale = true
	}
	s.mu.Unlock()
	if ok {
		s.notify(key)
	}
}

// LastUpdated returns the time of the last authoritative write for
// key, or the zero time when the key has never been loaded.
func (s *Store) LastUpdated(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.lastUpdated
	}
	return time.Time{}
}

func (s *Store) ensureLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// Watch registers a channel that receives the key of every changed
// entry. Sends never block; a slow consumer misses intermediate keys,
// not final state, since it re-reads the store on wake.
func (s *Store) Watch() chan string {
	ch := make(chan string, 64)
	s.watchMu.Lock()
	s.watchers[ch] = struct{}{}
	s.watchMu.Unlock()
	return ch
}

// Unwatch removes a channel registered with Watch.
func (s *Store) Unwatch(ch chan string) {
	s.watchMu.Lock()
	delete(s.watchers, ch)
	s.watchMu.Unlock()
}

func (s *Store) notify(key string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- key:
		default:
		}
	}
}
