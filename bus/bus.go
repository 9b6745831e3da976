// Package bus carries the process-wide "unauthorized" signal from REST
// calls to the session manager without either holding a reference to the
// other.
//
// The signal has no payload. Any number of producers may fire it and any
// number of listeners may subscribe; firing with no listeners is a no-op.
package bus

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Bus is a broadcast channel for the unauthorized signal. The zero value is
// not usable; call New. A Bus is safe for concurrent use.
type Bus struct {
	mu        sync.Mutex
	listeners map[uint64]func()
	nextID    uint64
	fired     atomic.Uint64
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{listeners: make(map[uint64]func())}
}

// Subscribe registers fn and returns the function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Fire invokes every registered listener on the calling goroutine, in
// subscription order. Listeners run outside the bus lock, so a listener may
// subscribe, unsubscribe, or fire again.
func (b *Bus) Fire() {
	if b == nil {
		return
	}
	b.fired.Add(1)

	b.mu.Lock()
	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Listeners returns the number of registered listeners.
func (b *Bus) Listeners() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Fired returns how many times Fire has been called.
func (b *Bus) Fired() uint64 {
	if b == nil {
		return 0
	}
	return b.fired.Load()
}
