package jwt

import (
	"testing"
	"time"
)

// FuzzDecode feeds arbitrary strings to the unverified decoder.
// Inputs that fail to decode must always count as expired.
func FuzzDecode(f *testing.F) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	valid, err := SignHS256([]byte("fuzz-secret"), "1", "admin", now, time.Hour)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJIUzI1NiJ9.e30.")
	f.Add(valid[:len(valid)/2])

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := Decode(token)
		if err != nil {
			if !IsExpired(token, now) {
				t.Fatalf("undecodable token %q reported as live", token)
			}
			return
		}
		if claims.ExpiresAt.IsZero() {
			t.Fatalf("decoded claims without expiry for %q", token)
		}
	})
}
