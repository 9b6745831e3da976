package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrInvalidToken is returned by Login when the token is empty.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrInvalidUser is returned by Login when the user profile fails validation.
	ErrInvalidUser = session.ErrInvalidUser
	// ErrDeleteAccount wraps every DeleteAccount failure. Session state is
	// unchanged when it is returned.
	ErrDeleteAccount = errors.New("delete account failed")
	// ErrNoBackend is returned by operations that need the REST backend when
	// the Manager was built without one.
	ErrNoBackend = errors.New("no backend configured")
	// ErrManagerClosed is returned by operations attempted after Close.
	ErrManagerClosed = errors.New("session manager closed")
	// ErrBuilderUsed is returned by a second Build call on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// ValidationError reports a client-side form check that failed before any
// request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
