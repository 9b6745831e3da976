package goSession

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/notify"
	"github.com/MrEthical07/goSession/session"
)

// Login records a session the caller already obtained from the backend:
// it persists token and user, authenticates, closes the login prompt and
// emits one "Welcome back!" notification. A persistence failure is logged
// and does not undo the in-memory login.
func (m *Manager) Login(ctx context.Context, token string, user User) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if strings.TrimSpace(token) == "" {
		m.metrics.Inc(MetricLoginRejected)
		return ErrInvalidToken
	}
	if err := user.Validate(); err != nil {
		m.metrics.Inc(MetricLoginRejected)
		return err
	}

	m.lifecycle.Lock()
	if err := m.store.Save(ctx, session.Record{Token: token, User: user}); err != nil {
		m.storageFailed("save", err)
	}
	m.update(func(s *State) {
		u := user
		s.User = &u
		s.IsAuthenticated = true
		s.IsLoginPromptOpen = false
	})
	m.lifecycle.Unlock()
	m.metrics.Inc(MetricLoginSuccess)
	m.logger.Info("signed in", "user_id", user.ID)
	m.emit(ctx, notify.KindSuccess, "Welcome back!", "Signed in as "+user.Username)
	return nil
}

// SignIn exchanges credentials with the backend and then calls Login.
// A backend rejection is returned as the backend's *api.Error.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*User, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if m.backend == nil {
		return nil, ErrNoBackend
	}

	start := time.Now()
	resp, err := m.backend.Login(ctx, strings.TrimSpace(email), password)
	m.metrics.Observe(MetricBackendLatency, time.Since(start))
	if err != nil {
		m.metrics.Inc(MetricAuthRequestFailure)
		return nil, err
	}
	if err := m.Login(ctx, resp.Token, resp.User); err != nil {
		return nil, err
	}
	u := resp.User
	return &u, nil
}

// SignupRequest is the signup form.
type SignupRequest struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate runs the form checks in order and reports the first failure.
func (r SignupRequest) Validate() error {
	username := strings.TrimSpace(r.Username)
	email := strings.TrimSpace(r.Email)
	switch {
	case username == "":
		return &ValidationError{Field: "username", Message: "Username is required"}
	case len([]rune(username)) < 3:
		return &ValidationError{Field: "username", Message: "Username must be at least 3 characters"}
	case email == "":
		return &ValidationError{Field: "email", Message: "Email is required"}
	case !session.ValidEmail(email):
		return &ValidationError{Field: "email", Message: "Please provide a valid email"}
	case r.Password == "":
		return &ValidationError{Field: "password", Message: "Password is required"}
	case len([]rune(r.Password)) < 6:
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	case r.Password != r.ConfirmPassword:
		return &ValidationError{Field: "confirm_password", Message: "Passwords do not match"}
	}
	return nil
}

// SignUp validates the form, creates the account and calls Login with
// the session the backend returns.
func (m *Manager) SignUp(ctx context.Context, req SignupRequest) (*User, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if m.backend == nil {
		return nil, ErrNoBackend
	}

	start := time.Now()
	resp, err := m.backend.Signup(ctx, api.SignupRequest{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	m.metrics.Observe(MetricBackendLatency, time.Since(start))
	if err != nil {
		m.metrics.Inc(MetricAuthRequestFailure)
		return nil, err
	}
	if err := m.Login(ctx, resp.Token, resp.User); err != nil {
		return nil, err
	}
	u := resp.User
	return &u, nil
}

// DeleteAccount deletes the signed-in account and then logs out silently.
// On failure the session is left as it was and the error, wrapped with
// ErrDeleteAccount, is returned for the caller to report.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	if m.closed.Load() {
		return fmt.Errorf("%w: %w", ErrDeleteAccount, ErrManagerClosed)
	}
	if m.backend == nil {
		return fmt.Errorf("%w: %w", ErrDeleteAccount, ErrNoBackend)
	}

	start := time.Now()
	err := m.backend.DeleteAccount(ctx)
	m.metrics.Observe(MetricBackendLatency, time.Since(start))
	if err != nil {
		m.metrics.Inc(MetricDeleteAccountFailure)
		m.logger.Warn("account deletion failed", "error", err)
		return fmt.Errorf("%w: %w", ErrDeleteAccount, err)
	}

	m.metrics.Inc(MetricDeleteAccountSuccess)
	m.SilentLogout(ctx)
	return nil
}
