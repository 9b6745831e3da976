package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when a token cannot be decoded as a
	// compact JWS with a JSON claims segment.
	ErrMalformedToken = errors.New("malformed session token")
	// ErrMissingExpiry is returned when the claims carry no numeric exp.
	ErrMissingExpiry = errors.New("session token has no exp claim")
)

// Claims is the decoded, unverified view of a session token.
type Claims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var unverifiedParser = jwt.NewParser()

func parse(token string) (jwt.MapClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of token without verifying its signature.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := parse(token)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Join(ErrMalformedToken, err)
	}
	if exp == nil {
		return time.Time{}, ErrMissingExpiry
	}
	return exp.Time, nil
}

// IsExpired reports whether token is expired at now. Tokens that cannot be
// decoded, or that carry no exp, are always expired.
func IsExpired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

// Decode returns the claims goSession cares about. Only exp is required.
func Decode(token string) (Claims, error) {
	claims, err := parse(token)
	if err != nil {
		return Claims{}, err
	}

	var out Claims
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}
	if exp == nil {
		return Claims{}, ErrMissingExpiry
	}
	out.ExpiresAt = exp.Time

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	return out, nil
}
