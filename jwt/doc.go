// Package jwt decodes the claims carried by session tokens issued by the
// backend.
//
// # Trust boundary
//
// Tokens are never verified here. The backend signs and verifies them; the
// client only reads the expiry to decide when a persisted session is stale.
// Every decode failure is reported as "expired" so a malformed or truncated
// token can never keep a session alive.
//
// [Sign] exists for test fixtures and the fake backend; production clients
// never hold a signing key.
package jwt
