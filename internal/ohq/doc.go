// Package ohq provides an HTTP client for the office hours queue API.
//
// # Overview
//
// This package defines the REST client and the wire types for queues,
// questions, and users. It is the single authoritative data source:
// push notifications (internal/live) only say that something changed,
// and the answer to "changed to what" always comes from this client.
//
// # Architecture
//
//   - client.go: HTTP client, request/response handling
//   - types.go: data structures mirroring the API schema
//   - errors.go: error taxonomy and user-facing message rewriting
//
// # Request Handling
//
// All requests use context for cancellation, send JSON, and attach a
// bearer token when configured. Mutations are sent exactly once: a
// request that produced any response (success or rejection) must not
// be retried, because the server may have applied it.
//
// # Error Handling
//
// Transport failures are returned as plain wrapped errors and are the
// only retryable class. Server rejections are returned as *APIError
// and classified by the Is* predicates:
//
//   - IsValidation: payload rejected, message shown to the user
//   - IsInvalidTransition: lifecycle conflict, recoverable, roll back
//   - IsAuthorization: fatal for the current view
package ohq
