// Package ui implements the terminal interface.
//
// The interface is a Bubble Tea program with a single top-level Model.
// It renders one course at a time: a tab row of the course's queues, the
// selected queue's stats, and either the student view (own question with
// live position) or the staff view (the waiting line in order).
//
// The Model never fetches on its own schedule. It watches the resource
// store's change feed and re-reads cached values whenever a key it cares
// about changes, so push notifications, optimistic writes, and rollbacks
// all reach the screen through the same path. When the push channel is
// down a warning banner is shown and data may lag until the fallback
// poller or a reconnect catches up.
//
// Mutations (ask, withdraw, claim, answer, reject, clear) run as
// commands against the session; failures surface as short-lived toasts
// with a friendly message.
package ui
