package goSession

import (
	"context"
	"errors"
	"slices"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Restore re-establishes the session persisted by a previous run. entry
// is the route the process starts on; on a Config.Startup.SplashRoutes
// entry Restore first waits Config.Startup.SplashDelay.
//
// IsLoading is set for the duration. A valid record authenticates, an
// expired one triggers a silent logout, and an absent or unreadable one
// leaves the session logged out. Restore never fails.
func (m *Manager) Restore(ctx context.Context, entry string) {
	if m.closed.Load() {
		return
	}
	m.metrics.Inc(MetricRestore)
	m.update(func(s *State) { s.IsLoading = true })
	defer m.update(func(s *State) { s.IsLoading = false })

	if delay := m.config.Startup.SplashDelay; delay > 0 && slices.Contains(m.config.Startup.SplashRoutes, entry) {
		select {
		case <-m.clock.After(delay):
		case <-ctx.Done():
		}
	}

	m.check(ctx)
}

// CheckNow runs one background expiration check immediately. Unlike
// Restore it never touches IsLoading and never waits.
func (m *Manager) CheckNow(ctx context.Context) {
	if m.closed.Load() {
		return
	}
	m.metrics.Inc(MetricBackgroundCheck)
	m.check(ctx)
}

func (m *Manager) startBackgroundCheck() {
	ticker := m.clock.NewTicker(m.config.Session.CheckInterval)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.CheckNow(context.Background())
			}
		}
	}()
}

// check is the decision Restore and the background check share. The
// store read and the state it leads to happen under the lifecycle lock.
func (m *Manager) check(ctx context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	rec, err := m.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotFound):
		m.resetAuth()
		return
	case errors.Is(err, session.ErrCorrupt):
		m.logger.Warn("discarding unreadable session record", "error", err)
		if err := m.store.Clear(ctx); err != nil {
			m.storageFailed("clear", err)
		}
		m.resetAuth()
		return
	default:
		m.storageFailed("load", err)
		m.resetAuth()
		return
	}

	if jwt.IsExpired(rec.Token, m.clock.Now()) {
		m.metrics.Inc(MetricSessionExpired)
		m.metrics.Inc(MetricLogoutSilent)
		m.logger.Info("session token expired", "user_id", rec.User.ID)
		m.endSession(ctx, rec.Token)
		return
	}

	m.metrics.Inc(MetricSessionRestored)
	m.setAuthenticated(rec.User)
}

func (m *Manager) storageFailed(op string, err error) {
	m.metrics.Inc(MetricStorageError)
	m.logger.Warn("session store "+op+" failed", "error", err)
}
