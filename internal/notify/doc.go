// Package notify carries user-facing notifications from the session manager
// to whatever renders them (a terminal, a log, a test recorder).
//
// # Components
//
//   - [Notification]: one titled message with a kind, timestamp and display lifetime.
//   - [Sink]: interface for consumers (channel, JSON writer, func, no-op).
//   - [Tray]: sink holding what is currently on display, with dismissal.
//   - [Dispatcher]: buffered async relay; drops on a full buffer when asked
//     and skips notifications that expired before delivery.
//
// # Architecture boundaries
//
// This package owns delivery only. It does NOT decide which notifications
// to emit; that belongs to the session manager.
package notify
