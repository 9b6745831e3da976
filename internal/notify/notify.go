package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification for presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// DefaultLifetime is how long a notification stays on display.
const DefaultLifetime = 5 * time.Second

// Notification is one user-facing message. A zero ExpiresAt keeps it on
// display until dismissed.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// New stamps a notification with a fresh id, shown for DefaultLifetime.
func New(kind Kind, title, message string, now time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Timestamp: now,
		ExpiresAt: now.Add(DefaultLifetime),
	}
}

// Lasting returns n shown for d from its timestamp. d <= 0 keeps it until
// dismissed.
func (n Notification) Lasting(d time.Duration) Notification {
	if d <= 0 {
		n.ExpiresAt = time.Time{}
		return n
	}
	n.ExpiresAt = n.Timestamp.Add(d)
	return n
}

// Expired reports whether n is no longer on display at now.
func (n Notification) Expired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && !now.Before(n.ExpiresAt)
}

// Sink consumes notifications. Implementations must be safe for
// concurrent use.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

type NoOpSink struct{}

func (NoOpSink) Notify(context.Context, Notification) {}

// FuncSink adapts a function to Sink.
type FuncSink func(ctx context.Context, n Notification)

func (f FuncSink) Notify(ctx context.Context, n Notification) {
	if f != nil {
		f(ctx, n)
	}
}

type ChannelSink struct {
	ch chan Notification
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Notification, buffer)}
}

// Notify blocks until the notification is buffered or ctx is done.
func (s *ChannelSink) Notify(ctx context.Context, n Notification) {
	select {
	case s.ch <- n:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Notifications() <-chan Notification {
	return s.ch
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

func (s *JSONWriterSink) Notify(_ context.Context, n Notification) {
	if s == nil || s.w == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(data)
}

// Tray holds the notifications currently on display, oldest first. Expired
// entries fall off on the next access; past limit the oldest is pushed out.
type Tray struct {
	mu    sync.Mutex
	now   func() time.Time
	limit int
	items []Notification
}

// NewTray returns an empty tray. limit <= 0 means unbounded; a nil now
// uses time.Now.
func NewTray(limit int, now func() time.Time) *Tray {
	if now == nil {
		now = time.Now
	}
	return &Tray{now: now, limit: limit}
}

func (t *Tray) Notify(_ context.Context, n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prune()
	if n.Expired(t.now()) {
		return
	}
	t.items = append(t.items, n)
	if t.limit > 0 && len(t.items) > t.limit {
		t.items = append(t.items[:0], t.items[len(t.items)-t.limit:]...)
	}
}

// Dismiss removes the notification with id and reports whether it was
// on display.
func (t *Tray) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, n := range t.items {
		if n.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the notifications still on display.
func (t *Tray) Active() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prune()
	return append([]Notification(nil), t.items...)
}

func (t *Tray) prune() {
	now := t.now()
	kept := t.items[:0]
	for _, n := range t.items {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	clear(t.items[len(kept):])
	t.items = kept
}
