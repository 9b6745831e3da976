package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

// EncodeUser serializes u for the "user" entry.
func EncodeUser(u User) ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUser parses a "user" entry.
func DecodeUser(data []byte) (User, error) {
	if len(data) == 0 {
		return User{}, fmt.Errorf("%w: empty user entry", ErrCorrupt)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return u, nil
}

// assemble builds a Record from raw entries, enforcing that both or
// neither are present. A user that fails Validate is corrupt.
func assemble(token string, hasToken bool, user []byte, hasUser bool) (Record, error) {
	switch {
	case !hasToken && !hasUser:
		return Record{}, ErrNotFound
	case hasToken != hasUser:
		return Record{}, fmt.Errorf("%w: token and user entries out of step", ErrCorrupt)
	}
	if token == "" {
		return Record{}, fmt.Errorf("%w: empty token entry", ErrCorrupt)
	}
	u, err := DecodeUser(user)
	if err != nil {
		return Record{}, err
	}
	if err := u.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Record{Token: token, User: u}, nil
}

func checkRecord(rec Record) error {
	if rec.Token == "" {
		return errors.New("session: empty token")
	}
	return nil
}
