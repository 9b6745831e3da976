// Package internal holds goSession helpers that are private to the module.
//
// # Sub-packages
//
//   - clock: real and fake time sources for the expiration ticker and splash delay
//   - notify: async notification dispatch (Dispatcher + Sink implementations)
//   - fakebackend: in-memory student-records backend for tests and examples
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
