package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden matches 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited matches 429 responses.
	ErrRateLimited = errors.New("rate limited")
	// ErrBadRequest matches 400 and 422 responses.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict matches 409 responses.
	ErrConflict = errors.New("conflict")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrServer matches 5xx responses.
	ErrServer = errors.New("server error")
	// ErrNetwork matches requests that never got a response.
	ErrNetwork = errors.New("network error")
)

const (
	defaultMessage     = "An unexpected error occurred"
	forbiddenMessage   = "You do not have permission to perform this action."
	rateLimitedMessage = "Too many requests. Please try again later."
	networkMessage     = "Network error. Please check your connection."
)

// Error is a failed API call. Message is user-facing; StatusCode is zero
// when no response was received.
type Error struct {
	StatusCode int
	Message    string
	RequestID  string

	kind  error
	cause error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap exposes both the sentinel kind and the transport cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrBadRequest
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServer
	default:
		return nil
	}
}

// messageFor picks the user-facing message: the server's "error" field,
// then its "message" field, then the generic default. 403 and 429 always
// use fixed wording.
func messageFor(status int, serverError, serverMessage string) string {
	switch status {
	case http.StatusForbidden:
		return forbiddenMessage
	case http.StatusTooManyRequests:
		return rateLimitedMessage
	}
	switch {
	case serverError != "":
		return serverError
	case serverMessage != "":
		return serverMessage
	default:
		return defaultMessage
	}
}
