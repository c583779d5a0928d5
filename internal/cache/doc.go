// Package cache implements the keyed resource store.
//
// # Overview
//
// Every server-owned value the UI renders lives here under a string
// key: queue collections, question collections, the position
// singleton, the user profile. Values enter through three doors:
//
//   - Fetch: authoritative load, deduplicated via singleflight so N
//     concurrent readers of an uncached key perform one request
//   - MutateLocal: optimistic local write, marked pending until the
//     server confirms
//   - Reconcile / ReconcileWith: server confirmation, clears pending
//
// Invalidate marks an entry stale without evicting it; readers keep
// the stale value while a background revalidation runs
// (stale-while-revalidate). Loader failures are retained on the entry
// and surfaced alongside the last good value, never thrown across the
// read boundary.
//
// # Convergence
//
// Push notifications and local mutations race freely. The store
// guarantees convergence by refusing to let a plain load overwrite a
// pending optimistic value (the confirmation or rollback settles it)
// and by letting Reconcile always win. Whatever order events arrive
// in, the entry ends at the last server-confirmed value.
//
// # Typed access
//
// Resource and ResourceList in resource.go give the UI a typed
// {data, error, isValidating, mutate} surface over one key.
package cache
