// Package app provides the orchestration layer for ohqtui.
//
// # Overview
//
// This package wires configuration, the API client, the resource
// store, the push channel, the synchronization controller, and the UI
// into the running application. It is the composition root; business
// logic lives in the domain packages.
//
// # Startup
//
//  1. Load config from ~/.config/ohqtui/config.toml (required)
//  2. Load preferences (best effort)
//  3. Build the REST client and push channel client
//  4. Create the store and controller
//  5. Fetch the user profile (fatal on auth failure) and prime the
//     queue list
//  6. Start the push channel and the fallback refresher
//  7. Run the TUI until the user quits or the context cancels
//
// # Freshness
//
// While the push channel is connected, change notifications drive all
// cache revalidation and no polling happens. When the channel drops,
// the fallback refresher in poller.go polls bound resources at a slow
// fixed cadence so the view degrades to eventually-fresh instead of
// frozen, while the channel reconnects with backoff.
//
// # Error Handling
//
// Fatal errors (returned from Run): unreadable config, client
// initialization failure, authorization failure, initial queue fetch
// failure. Everything after startup is recoverable: mutation errors
// surface as toasts, connection loss as a banner.
package app
