package cache

import (
	"context"
	"fmt"
)

// Resource is a typed view over a single store key. It mirrors the
// read-write surface the UI consumes: data plus retained error plus
// validation status, and a Mutate that drives the optimistic write
// cycle.
type Resource[T any] struct {
	store  *Store
	key    string
	loader func(ctx context.Context) (T, error)
}

// NewResource binds a key to its loader.
func NewResource[T any](store *Store, key string, loader func(ctx context.Context) (T, error)) *Resource[T] {
	return &Resource[T]{store: store, key: key, loader: loader}
}

// Key returns the underlying store key.
func (r *Resource[T]) Key() string { return r.key }

// Loader returns the untyped loader for controller registration.
func (r *Resource[T]) Loader() Loader {
	return func(ctx context.Context) (any, error) {
		return r.loader(ctx)
	}
}

// Get returns the cached value, loading when absent and revalidating
// in the background when stale.
func (r *Resource[T]) Get(ctx context.Context) (T, error) {
	value, err := r.store.Fetch(ctx, r.key, r.Loader())
	return assert[T](r.key, value), err
}

// Peek returns the cached value and retained error without touching
// the network.
func (r *Resource[T]) Peek() (T, error, bool) {
	value, err, ok := r.store.Get(r.key)
	if !ok {
		var zero T
		return zero, err, false
	}
	return assert[T](r.key, value), err, true
}

// IsValidating reports whether the value is currently being confirmed
// or refreshed.
func (r *Resource[T]) IsValidating() bool {
	return r.store.Pending(r.key) || r.store.Stale(r.key)
}

// Mutate applies an optimistic local update, sends the commit to the
// server, and reconciles the entry with the server's copy. On failure
// the pre-mutation value is restored exactly and the error returned
// to the caller for display.
func (r *Resource[T]) Mutate(ctx context.Context, apply func(T) T, commit func(context.Context) (T, error)) (T, error) {
	r.store.MutateLocal(r.key, func(current any) any {
		return apply(assert[T](r.key, current))
	})
	confirmed, err := commit(ctx)
	if err != nil {
		r.store.Rollback(r.key)
		var zero T
		return zero, err
	}
	r.store.Reconcile(r.key, confirmed, true)
	return confirmed, nil
}

// Invalidate marks the resource stale.
func (r *Resource[T]) Invalidate() {
	r.store.Invalidate(r.key)
}

// ResourceList is a typed view over a collection key. Items are
// addressed by id inside the cached slice; a mutation updates the one
// element optimistically and reconciles the whole collection from the
// server's confirmed copy of that element.
type ResourceList[T any] struct {
	store  *Store
	key    string
	id     func(T) int64
	loader func(ctx context.Context) ([]T, error)
}

// NewResourceList binds a collection key to its loader and identity
// function.
func NewResourceList[T any](store *Store, key string, id func(T) int64, loader func(ctx context.Context) ([]T, error)) *ResourceList[T] {
	return &ResourceList[T]{store: store, key: key, id: id, loader: loader}
}

// Key returns the underlying collection key.
func (r *ResourceList[T]) Key() string { return r.key }

// Loader returns the untyped loader for controller registration.
func (r *ResourceList[T]) Loader() Loader {
	return func(ctx context.Context) (any, error) {
		return r.loader(ctx)
	}
}

// Get returns the cached collection, loading when absent.
func (r *ResourceList[T]) Get(ctx context.Context) ([]T, error) {
	value, err := r.store.Fetch(ctx, r.key, r.Loader())
	if value == nil {
		return nil, err
	}
	return assert[[]T](r.key, value), err
}

// Peek returns the cached collection without touching the network.
func (r *ResourceList[T]) Peek() ([]T, error, bool) {
	value, err, ok := r.store.Get(r.key)
	if !ok || value == nil {
		return nil, err, ok
	}
	return assert[[]T](r.key, value), err, ok
}

// IsValidating reports whether the collection is being confirmed or
// refreshed.
func (r *ResourceList[T]) IsValidating() bool {
	return r.store.Pending(r.key) || r.store.Stale(r.key)
}

// MutateItem optimistically rewrites the element with the given id,
// commits over the network, and reconciles the collection with the
// server's confirmed element. On failure the collection is restored
// exactly.
func (r *ResourceList[T]) MutateItem(ctx context.Context, id int64, apply func(T) T, commit func(context.Context) (T, error)) error {
	r.store.MutateLocal(r.key, func(current any) any {
		if current == nil {
			return current
		}
		items := assert[[]T](r.key, current)
		updated := make([]T, len(items))
		copy(updated, items)
		for i, item := range updated {
			if r.id(item) == id {
				updated[i] = apply(item)
			}
		}
		return updated
	})
	confirmed, err := commit(ctx)
	if err != nil {
		r.store.Rollback(r.key)
		return err
	}
	r.store.ReconcileWith(r.key, r.replace(confirmed))
	return nil
}

// Append optimistically appends a created element, commits, and
// reconciles with the server's copy (which carries the authoritative
// id and order key).
func (r *ResourceList[T]) Append(ctx context.Context, draft T, commit func(context.Context) (T, error)) (T, error) {
	r.store.MutateLocal(r.key, func(current any) any {
		var items []T
		if current != nil {
			items = assert[[]T](r.key, current)
		}
		updated := make([]T, len(items), len(items)+1)
		copy(updated, items)
		return append(updated, draft)
	})
	confirmed, err := commit(ctx)
	if err != nil {
		r.store.Rollback(r.key)
		var zero T
		return zero, err
	}
	r.store.ReconcileWith(r.key, func(current any) any {
		if current == nil {
			return []T{confirmed}
		}
		items := assert[[]T](r.key, current)
		updated := make([]T, len(items))
		copy(updated, items)
		replaced := false
		for i, item := range updated {
			if r.id(item) == r.id(confirmed) || r.id(item) == r.id(draft) {
				updated[i] = confirmed
				replaced = true
			}
		}
		if !replaced {
			updated = append(updated, confirmed)
		}
		return updated
	})
	return confirmed, nil
}

// replace returns a merge function swapping the confirmed element
// into the cached collection by id.
func (r *ResourceList[T]) replace(confirmed T) func(any) any {
	return func(current any) any {
		if current == nil {
			return current
		}
		items := assert[[]T](r.key, current)
		updated := make([]T, len(items))
		copy(updated, items)
		for i, item := range updated {
			if r.id(item) == r.id(confirmed) {
				updated[i] = confirmed
			}
		}
		return updated
	}
}

// Invalidate marks the collection stale.
func (r *ResourceList[T]) Invalidate() {
	r.store.Invalidate(r.key)
}

func assert[T any](key string, value any) T {
	if value == nil {
		var zero T
		return zero
	}
	typed, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("cache: key %q holds %T", key, value))
	}
	return typed
}
