package session

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidUser is returned when a user profile fails validation.
var ErrInvalidUser = errors.New("invalid user profile")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User is the profile of the signed-in account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
}

// UnmarshalJSON accepts "user_id" as an alias for "id"; the backend returns
// either depending on the endpoint.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       *int64 `json:"id"`
		UserID   *int64 `json:"user_id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User{Username: raw.Username, Email: raw.Email, Role: raw.Role}
	switch {
	case raw.UserID != nil:
		u.ID = *raw.UserID
	case raw.ID != nil:
		u.ID = *raw.ID
	}
	return nil
}

// Validate checks the invariants every stored profile must satisfy.
func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.Join(ErrInvalidUser, errors.New("username is empty"))
	}
	if !ValidEmail(u.Email) {
		return errors.Join(ErrInvalidUser, errors.New("email is not valid"))
	}
	return nil
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Record is one persisted session: the opaque token and its user.
type Record struct {
	Token string
	User  User
}
