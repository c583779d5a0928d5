package ohq

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a request the server received and rejected. Transport
// failures (timeouts, refused connections) are returned as plain
// wrapped errors instead, and only those are safe to retry.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Detail)
}

// inviteLimitDetail is the server's noisy message when a mass-invite
// exceeds the per-course user cap. It leaks internal limits, so the
// UI shows inviteLimitFriendly instead.
const (
	inviteLimitDetail   = "course cannot have more than"
	inviteLimitFriendly = "Course size limit reached. Please contact support to increase it."
)

// IsValidation reports whether err is a payload the server rejected
// as invalid.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// IsAuthorization reports whether err means the current session may
// not perform the request. Callers should treat this as fatal for the
// view and bail out to re-authentication.
func IsAuthorization(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsInvalidTransition reports whether the server refused a lifecycle
// transition, typically because another staff member got there first.
// Recoverable: roll back the optimistic value and let the next fetch
// show the authoritative state.
func IsInvalidTransition(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Detail), "transition")
}

// FriendlyMessage converts err into text suitable for a toast.
// Validation details are shown verbatim except the known-noisy invite
// limit message, which is rewritten.
func FriendlyMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "There was an error!"
	}
	if strings.Contains(strings.ToLower(apiErr.Detail), inviteLimitDetail) {
		return inviteLimitFriendly
	}
	if strings.TrimSpace(apiErr.Detail) == "" {
		return "There was an error!"
	}
	return apiErr.Detail
}
