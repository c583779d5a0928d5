// Package live maintains the push channel: one websocket connection
// multiplexing change subscriptions.
//
// # Protocol
//
// The client sends control messages
//
//	{"action": "subscribe"|"unsubscribe", "model": ..., "property": ..., "value": ...}
//
// and receives notifications
//
//	{"model": ..., "id": ..., "action": "created"|"updated"|"deleted"}
//
// Notifications carry identity and change kind only. The content of
// the change always comes from the REST API; trusting a pushed body
// would duplicate server-side computation (counts, wait estimates)
// and risk skew.
//
// # Connection lifecycle
//
// Disconnected -> Connecting -> Connected, then Reconnecting on any
// failure with exponential backoff capped at 30s. Subscriptions do not
// survive a connection loss server-side, so every reconnect replays
// one subscribe message per active tuple. Connected() is false during
// any non-connected state so the UI can warn about stale data.
//
// # Ordering
//
// Notifications within one subscription arrive in server-send order.
// No ordering holds across subscriptions, or between a notification
// and a locally-issued mutation's response; the cache's reconcile
// discipline makes both paths converge.
package live
