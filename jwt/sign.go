package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignHS256 issues an HS256 token for subject with the given role and
// lifetime relative to now. A non-positive ttl yields an already expired
// token, which is what tests of the expiry path want.
func SignHS256(secret []byte, subject, role string, now time.Time, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("hs256 requires a secret")
	}
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	if role != "" {
		claims["role"] = role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyHS256 verifies token against secret and returns its subject. The
// client never calls this; it backs the fake backend used in tests.
func VerifyHS256(secret []byte, token string, now time.Time) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	parsed, err := parser.Parse(token, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	return parsed.Claims.GetSubject()
}
