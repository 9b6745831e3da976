package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	BufferSize int
	DropIfFull bool
	// Now, when set, lets the relay skip notifications whose display
	// lifetime ran out while they waited in the buffer.
	Now func() time.Time
}

// Dispatcher forwards notifications to a sink from its own goroutine so
// a slow sink never stalls a session transition. Notifications that never
// reach the sink, because the buffer was full or they expired in it, are
// counted by Dropped.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the relay goroutine. Close must be called to stop it.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Notification, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	if d.cfg.Now != nil && n.Expired(d.cfg.Now()) {
		d.dropped.Add(1)
		return
	}
	d.sink.Notify(context.Background(), n)
}

// Notify enqueues n. With DropIfFull a full buffer drops n and counts it;
// otherwise Notify waits for room, ctx, or Close.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- n:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- n:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close flushes buffered notifications and stops the relay. It is
// idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
