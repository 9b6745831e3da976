package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/internal/notify"
)

const logoutKey = "logout"

// Logout ends the session and emits one "Signed out" notification. When a
// token is persisted the backend is told first; a backend failure is
// logged and never blocks the local logout.
func (m *Manager) Logout(ctx context.Context) {
	if m.closed.Load() {
		return
	}
	m.metrics.Inc(MetricLogoutExplicit)
	m.logout(ctx)
	m.emit(ctx, notify.KindInfo, "Signed out", "You have been successfully signed out.")
}

// SilentLogout is Logout without the notification. Expired tokens and
// unauthorized signals end up here.
func (m *Manager) SilentLogout(ctx context.Context) {
	if m.closed.Load() {
		return
	}
	m.metrics.Inc(MetricLogoutSilent)
	m.logout(ctx)
}

// logout coalesces concurrent callers into one backend call and one store
// clear.
func (m *Manager) logout(ctx context.Context) {
	_, _, _ = m.logoutGroup.Do(logoutKey, func() (any, error) {
		m.lifecycle.Lock()
		defer m.lifecycle.Unlock()

		token, err := m.Token(ctx)
		if err != nil {
			m.storageFailed("load", err)
		}
		m.endSession(ctx, token)
		return nil, nil
	})
}

// endSession revokes token with the backend when there is one, clears the
// store and resets the state. The caller holds the lifecycle lock.
func (m *Manager) endSession(ctx context.Context, token string) {
	m.loggingOut.Store(true)
	defer m.loggingOut.Store(false)

	if token != "" && m.backend != nil {
		start := time.Now()
		if err := m.backend.Logout(ctx); err != nil {
			m.metrics.Inc(MetricBackendLogoutFailure)
			m.logger.Warn("backend logout failed", "error", err)
		}
		m.metrics.Observe(MetricBackendLatency, time.Since(start))
	}

	if err := m.store.Clear(ctx); err != nil {
		m.storageFailed("clear", err)
	}
	m.resetAuth()
}

// handleUnauthorized is the bus listener. A signal raised while a logout
// is already running (for example by the backend logout call itself) is
// dropped.
func (m *Manager) handleUnauthorized() {
	m.metrics.Inc(MetricUnauthorizedSignal)
	if m.loggingOut.Load() {
		return
	}
	m.logger.Info("unauthorized response received; ending session")
	m.SilentLogout(context.Background())
}
