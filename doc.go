// Package goSession manages the client-side authentication session of a
// student-records application: persisting the bearer token, restoring it
// at startup, expiring it in the background, and ending it when the
// backend answers 401.
//
// A process builds exactly one [Manager] through [Builder.Build] and
// tears it down with [Manager.Close]. Manager methods are safe to call
// from multiple goroutines.
//
// # Architecture boundaries
//
// goSession is the public surface: [Manager], [Builder], [Config], [State]
// and the notification types. Persistence lives in session/, token
// decoding in jwt/, the REST client in api/, the unauthorized signal in
// bus/ and route decisions in guard/. Notification buffering lives under
// internal/.
//
// # What this package must NOT do
//
//   - Verify token signatures; the backend is the authority, the client only
//     reads the expiry.
//   - Hold its state lock across storage or network I/O.
//   - Emit a notification on a silent path (expiry, unauthorized signal,
//     account deletion).
package goSession
