// Package session persists the client's current session record (token plus
// user profile) so it survives process restarts.
//
// # Record layout
//
// A record is two logical entries under fixed keys, "token" and "user". The
// user entry is JSON. Every backend writes and clears both entries in one
// atomic step so a reader never observes one without the other; a read that
// does find only one reports [ErrCorrupt].
//
// # Backends
//
//   - [MemoryStore]: process memory, for tests and ephemeral clients.
//   - [FileStore]: a single JSON document replaced via rename.
//   - [RedisStore]: MULTI/EXEC pipelines over go-redis.
//   - [SQLiteStore]: a key/value table in an embedded SQLite database.
//
// # What this package must NOT do
//
//   - Interpret the token (expiry decisions belong to the manager).
//   - Retry failed writes; errors surface wrapped with [ErrStorage].
package session
