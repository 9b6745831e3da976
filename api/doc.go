// Package api is the REST client for the student-records backend.
//
// Every request carries "Authorization: Bearer <token>" when the configured
// [TokenSource] has a token, and an X-Request-ID. Every response with status
// 401 fires the configured unauthorized [Signaler] (normally a *bus.Bus
// the session manager listens on), except for the best-effort logout call.
//
// Failures are returned as *[Error], whose Message is safe to show to a
// user and which matches the sentinel errors below with errors.Is.
package api
