package goSession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/bus"
	"github.com/MrEthical07/goSession/internal/clock"
	"github.com/MrEthical07/goSession/internal/notify"
	"github.com/MrEthical07/goSession/session"
	"golang.org/x/sync/singleflight"
)

// Manager owns the authentication lifecycle of one client process:
// restoring a persisted session, login, logout, the periodic expiration
// check and the reaction to unauthorized signals.
//
// Manager methods are safe for concurrent use. Login, the expiration
// check and logout are serialized by a lifecycle lock held across their
// store I/O, so a store read and the state it produces are never split by
// another of them. The state mutex itself is never held across I/O.
type Manager struct {
	config    Config
	store     session.Store
	ownsStore bool
	backend   Backend
	client    *api.Client
	bus       *bus.Bus
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *Metrics

	notifier   notify.Sink
	dispatcher *notify.Dispatcher

	// lifecycle orders Login, check and logout. Acquire before mu.
	lifecycle sync.Mutex

	mu          sync.Mutex
	state       State
	watchers    map[uint64]func(State)
	nextWatcher uint64

	logoutGroup singleflight.Group
	loggingOut  atomic.Bool

	unsubscribe func()
	stop        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
	closed      atomic.Bool
}

// State returns a snapshot of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *User {
	return m.State().User
}

// Token returns the persisted session token, or "" when there is none.
func (m *Manager) Token(ctx context.Context) (string, error) {
	rec, err := m.store.Load(ctx)
	switch {
	case err == nil:
		return rec.Token, nil
	case isStoreMiss(err):
		return "", nil
	default:
		return "", err
	}
}

// Bus returns the unauthorized signal bus the Manager listens on.
func (m *Manager) Bus() *bus.Bus { return m.bus }

// API returns the REST client when the Manager's backend is one, else nil.
func (m *Manager) API() *api.Client { return m.client }

// Store returns the persisted session store.
func (m *Manager) Store() session.Store { return m.store }

// MetricsSnapshot returns the current counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot { return m.metrics.Snapshot() }

// NotificationsDropped reports notifications the async dispatcher dropped
// because its buffer was full.
func (m *Manager) NotificationsDropped() uint64 { return m.dispatcher.Dropped() }

// Watch registers fn to receive every state change. fn runs on the
// goroutine that made the change, after the Manager's lock is released;
// it must not block or call Login, Restore, CheckNow or a logout. The returned cancel func is idempotent.
func (m *Manager) Watch(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}

func isStoreMiss(err error) bool {
	return errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt)
}

// OpenLoginPrompt marks the login prompt as open.
func (m *Manager) OpenLoginPrompt() {
	m.update(func(s *State) { s.IsLoginPromptOpen = true })
}

// CloseLoginPrompt marks the login prompt as closed.
func (m *Manager) CloseLoginPrompt() {
	m.update(func(s *State) { s.IsLoginPromptOpen = false })
}

// update applies fn under the lock and tells watchers when the state
// actually changed.
func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	before := m.state.clone()
	fn(&m.state)
	after := m.state.clone()
	changed := !sameState(before, after)
	var watchers []func(State)
	if changed {
		watchers = make([]func(State), 0, len(m.watchers))
		for _, w := range m.watchers {
			watchers = append(watchers, w)
		}
	}
	m.mu.Unlock()

	for _, w := range watchers {
		w(after.clone())
	}
}

func sameState(a, b State) bool {
	if a.IsAuthenticated != b.IsAuthenticated ||
		a.IsLoading != b.IsLoading ||
		a.IsLoginPromptOpen != b.IsLoginPromptOpen {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	return *a.User == *b.User
}

func (m *Manager) setAuthenticated(u User) {
	m.update(func(s *State) {
		s.User = &u
		s.IsAuthenticated = true
	})
}

func (m *Manager) resetAuth() {
	m.update(func(s *State) {
		s.User = nil
		s.IsAuthenticated = false
	})
}

func (m *Manager) emit(ctx context.Context, kind notify.Kind, title, message string) {
	m.notifier.Notify(ctx, notify.New(kind, title, message, m.clock.Now()).Lasting(m.config.Notifications.DisplayFor))
}

// Close stops the background check, unsubscribes from the bus, flushes
// pending notifications and closes a store the Manager opened itself.
// It is idempotent.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		close(m.stop)
		m.wg.Wait()
		m.dispatcher.Close()
		if m.ownsStore {
			err = m.store.Close()
		}
	})
	return err
}
