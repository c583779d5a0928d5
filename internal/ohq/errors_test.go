package ohq

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		validation    bool
		authorization bool
		transition    bool
	}{
		{
			name:       "bad request",
			err:        &APIError{StatusCode: 400, Detail: "text is required"},
			validation: true,
		},
		{
			name:          "unauthorized",
			err:           &APIError{StatusCode: 401},
			authorization: true,
		},
		{
			name:          "forbidden",
			err:           &APIError{StatusCode: 403, Detail: "not a member"},
			authorization: true,
		},
		{
			name:       "conflict is a refused transition",
			err:        &APIError{StatusCode: 409, Detail: "already claimed"},
			transition: true,
		},
		{
			name:       "bad request mentioning a transition",
			err:        &APIError{StatusCode: 400, Detail: "Invalid Transition from STARTED to ASKED"},
			validation: true,
			transition: true,
		},
		{
			name: "server error is none of them",
			err:  &APIError{StatusCode: 500},
		},
		{
			name: "transport error is none of them",
			err:  errors.New("dial tcp: connection refused"),
		},
		{
			name:       "wrapped api error still classifies",
			err:        fmt.Errorf("update question: %w", &APIError{StatusCode: 400, Detail: "bad payload"}),
			validation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation() = %v, want %v", got, tt.validation)
			}
			if got := IsAuthorization(tt.err); got != tt.authorization {
				t.Errorf("IsAuthorization() = %v, want %v", got, tt.authorization)
			}
			if got := IsInvalidTransition(tt.err); got != tt.transition {
				t.Errorf("IsInvalidTransition() = %v, want %v", got, tt.transition)
			}
		})
	}
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "detail shown verbatim",
			err:  &APIError{StatusCode: 400, Detail: "Queue is closed"},
			want: "Queue is closed",
		},
		{
			name: "invite limit rewritten",
			err:  &APIError{StatusCode: 400, Detail: "Course cannot have more than 1000 users"},
			want: "Course size limit reached. Please contact support to increase it.",
		},
		{
			name: "empty detail",
			err:  &APIError{StatusCode: 500},
			want: "There was an error!",
		},
		{
			name: "transport error",
			err:  errors.New("timeout"),
			want: "There was an error!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FriendlyMessage(tt.err); got != tt.want {
				t.Errorf("FriendlyMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIErrorString(t *testing.T) {
	withDetail := &APIError{StatusCode: 404, Detail: "no such queue"}
	if got := withDetail.Error(); got != "api returned status 404: no such queue" {
		t.Errorf("Error() = %q", got)
	}
	bare := &APIError{StatusCode: 502}
	if got := bare.Error(); got != "api returned status 502" {
		t.Errorf("Error() = %q", got)
	}
}
