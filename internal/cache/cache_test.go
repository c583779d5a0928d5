package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchDeduplicatesConcurrentLoads(t *testing.T) {
	store := New()
	var calls atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Fetch(context.Background(), "k", loader)
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
			if got != "value" {
				t.Errorf("Fetch() = %v, want %q", got, "value")
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestFetchServesCachedValueWithoutLoading(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Fetch(ctx, "k", staticLoader("v1")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	got, err := store.Fetch(ctx, "k", func(ctx context.Context) (any, error) {
		t.Fatal("loader called for a fresh entry")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "v1" {
		t.Errorf("Fetch() = %v, want %q", got, "v1")
	}
}

func TestStaleWhileRevalidate(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Fetch(ctx, "k", staticLoader("v1")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	store.Invalidate("k")
	if !store.Stale("k") {
		t.Fatal("Stale() = false after Invalidate")
	}

	// The stale read returns immediately with the old value while the
	// refetch runs in the background.
	got, err := store.Fetch(ctx, "k", staticLoader("v2"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "v1" {
		t.Errorf("stale Fetch() = %v, want old value %q", got, "v1")
	}

	waitFor(t, func() bool {
		v, _, ok := store.Get("k")
		return ok && v == "v2"
	})
	if store.Stale("k") {
		t.Error("Stale() = true after revalidation")
	}
}

func TestLoadErrorRetainsLastGoodValue(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Fetch(ctx, "k", staticLoader("v1")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	loadErr := errors.New("server unavailable")
	store.Refresh(ctx, "k", func(ctx context.Context) (any, error) {
		return nil, loadErr
	})

	got, err, ok := store.Get("k")
	if !ok {
		t.Fatal("Get() ok = false, want retained entry")
	}
	if got != "v1" {
		t.Errorf("Get() = %v, want last good value %q", got, "v1")
	}
	if !errors.Is(err, loadErr) {
		t.Errorf("Get() err = %v, want retained %v", err, loadErr)
	}

	// A later successful load clears the retained error.
	store.Refresh(ctx, "k", staticLoader("v2"))
	got, err, _ = store.Get("k")
	if got != "v2" || err != nil {
		t.Errorf("Get() = %v, %v, want %q, nil", got, err, "v2")
	}
}

func TestLoadErrorWithNoValue(t *testing.T) {
	store := New()
	loadErr := errors.New("boom")
	got, err := store.Fetch(context.Background(), "k", func(ctx context.Context) (any, error) {
		return nil, loadErr
	})
	if !errors.Is(err, loadErr) {
		t.Errorf("Fetch() err = %v, want %v", err, loadErr)
	}
	if got != nil {
		t.Errorf("Fetch() = %v, want nil", got)
	}
}

func TestMutateLocalAndRollback(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Fetch(ctx, "k", staticLoader("v1")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	store.MutateLocal("k", func(any) any { return "optimistic" })
	if !store.Pending("k") {
		t.Fatal("Pending() = false after MutateLocal")
	}
	if got, _, _ := store.Get("k"); got != "optimistic" {
		t.Fatalf("Get() = %v, want optimistic value", got)
	}

	store.Rollback("k")
	if store.Pending("k") {
		t.Error("Pending() = true after Rollback")
	}
	got, _, ok := store.Get("k")
	if !ok || got != "v1" {
		t.Errorf("Get() = %v, %v, want exact pre-mutation value %q", got, ok, "v1")
	}
}

func TestRollbackOnEmptyKeyDeletesEntry(t *testing.T) {
	store := New()
	store.MutateLocal("k", func(any) any { return "provisional" })
	store.Rollback("k")
	if _, _, ok := store.Get("k"); ok {
		t.Error("Get() ok = true, want entry removed when there was no prior value")
	}
}

func TestNestedMutationsRollBackToFirstSnapshot(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Fetch(ctx, "k", staticLoader("v1")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	store.MutateLocal("k", func(any) any { return "first" })
	store.MutateLocal("k", func(any) any { return "second" })

	store.Rollback("k")
	if !store.Pending("k") {
		t.Fatal("Pending() = false with one mutation still outstanding")
	}
	store.Rollback("k")
	got, _, _ := store.Get("k")
	if got != "v1" {
		t.Errorf("Get() = %v, want original %q after both rollbacks", got, "v1")
	}
}

func TestReconcileSettlesPending(t *testing.T) {
	store := New()
	store.MutateLocal("k", func(any) any { return "optimistic" })
	store.Reconcile("k", "confirmed", true)

	if store.Pending("k") {
		t.Error("Pending() = true after Reconcile")
	}
	if got, _, _ := store.Get("k"); got != "confirmed" {
		t.Errorf("Get() = %v, want server value", got)
	}
}

func TestReconcileRemovesDeletedResource(t *testing.T) {
	store := New()
	if _, err := store.Fetch(context.Background(), "k", staticLoader("v1")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	store.Reconcile("k", nil, false)
	if _, _, ok := store.Get("k"); ok {
		t.Error("Get() ok = true after Reconcile reported deletion")
	}
}

func TestLoadDoesNotClobberPendingMutation(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Fetch(ctx, "k", staticLoader("v1")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	store.MutateLocal("k", func(any) any { return "optimistic" })

	// A read racing the confirmation returns data from before the
	// write; it must not overwrite the optimistic value.
	store.Refresh(ctx, "k", staticLoader("v1"))
	if got, _, _ := store.Get("k"); got != "optimistic" {
		t.Fatalf("Get() = %v, want optimistic value to survive the load", got)
	}

	store.Reconcile("k", "confirmed", true)
	if got, _, _ := store.Get("k"); got != "confirmed" {
		t.Errorf("Get() = %v, want server value after Reconcile", got)
	}
}

func TestWatchReceivesChangedKeys(t *testing.T) {
	store := New()
	ch := store.Watch()
	defer store.Unwatch(ch)

	store.MutateLocal("a", func(any) any { return 1 })

	select {
	case key := <-ch:
		if key != "a" {
			t.Errorf("Watch received %q, want %q", key, "a")
		}
	case <-time.After(time.Second):
		t.Fatal("Watch never notified")
	}
}

func staticLoader(value any) Loader {
	return func(ctx context.Context) (any, error) {
		return value, nil
	}
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
