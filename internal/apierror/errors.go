package apierror

import (
	"errors"
	"net/http"
)

// Failure taxonomy. Every service error wraps exactly one of these (Conflict
// additionally wraps ErrInvalidState) so callers can branch with errors.Is.
var (
	// ErrInvalidState: operation not legal for the current session or vehicle status.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidAmount: negative or zero amount where a positive one is required.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInterval: exit timestamp before entry timestamp.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrPermissionDenied: privileged transition attempted by an unauthorized actor.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound: no active session or unknown id.
	ErrNotFound = errors.New("not found")
	// ErrConflict: opening a session while another one is open, or a duplicate
	// resource. Retryable after re-querying the active session.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput: malformed request data (bad id, unknown category, bad rule).
	ErrInvalidInput = errors.New("invalid input")
)

const (
	CodeInvalidState     = "invalid_state"
	CodeInvalidAmount    = "invalid_amount"
	CodeInvalidInterval  = "invalid_interval"
	CodePermissionDenied = "permission_denied"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeInvalidInput     = "invalid_input"
	CodeInternal         = "internal"
	CodeUnauthorized     = "unauthorized"
	CodeRateLimited      = "rate_limited"
	CodeUnavailable      = "unavailable"
)

// Code returns the machine-readable code for err. Conflict is checked before
// InvalidState because a conflict wraps both.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrInvalidInterval):
		return CodeInvalidInterval
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch Code(err) {
	case CodeConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeInvalidAmount, CodeInvalidInterval, CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the response envelope for err. Unclassified errors get a
// generic message.
func FromError(err error) *APIError {
	code := Code(err)
	if code == CodeInternal {
		return &APIError{Detail: "internal server error", Code: code}
	}
	return &APIError{Detail: err.Error(), Code: code}
}

// IsRetryable reports whether the caller may retry without changing its input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
