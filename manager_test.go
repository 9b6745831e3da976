package goSession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/clock"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

var testSecret = []byte("manager-test-secret")

type recordingSink struct {
	mu    sync.Mutex
	items []Notification
}

func (s *recordingSink) Notify(_ context.Context, n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
}

func (s *recordingSink) all() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.items...)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

type stubBackend struct {
	mu          sync.Mutex
	logoutErr   error
	deleteErr   error
	loginResp   *api.AuthResponse
	loginErr    error
	signupResp  *api.AuthResponse
	signupErr   error
	signupReq   api.SignupRequest
	onLogout    func()
	logoutCalls int
	deleteCalls int
}

func (b *stubBackend) Login(context.Context, string, string) (*api.AuthResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginResp, b.loginErr
}

func (b *stubBackend) Signup(_ context.Context, req api.SignupRequest) (*api.AuthResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signupReq = req
	return b.signupResp, b.signupErr
}

func (b *stubBackend) Logout(context.Context) error {
	b.mu.Lock()
	b.logoutCalls++
	hook := b.onLogout
	err := b.logoutErr
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (b *stubBackend) DeleteAccount(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteCalls++
	return b.deleteErr
}

func (b *stubBackend) calls() (logout, del int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutCalls, b.deleteCalls
}

// faultyStore injects errors in front of a MemoryStore.
type faultyStore struct {
	*session.MemoryStore
	loadErr  error
	saveErr  error
	clearErr error
	clears   atomic.Int32
}

func (s *faultyStore) Load(ctx context.Context) (session.Record, error) {
	if s.loadErr != nil {
		return session.Record{}, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

func (s *faultyStore) Save(ctx context.Context, rec session.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, rec)
}

func (s *faultyStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear(ctx)
}

type testHarness struct {
	m       *Manager
	clk     *clock.FakeClock
	store   session.Store
	backend *stubBackend
	sink    *recordingSink
}

func newHarness(t *testing.T, cfg Config, store session.Store) *testHarness {
	t.Helper()

	if store == nil {
		store = session.NewMemoryStore()
	}
	h := &testHarness{
		clk:     clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		store:   store,
		backend: &stubBackend{},
		sink:    &recordingSink{},
	}
	cfg.Metrics.Enabled = true

	m, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithBackend(h.backend).
		WithNotificationSink(h.sink).
		withClock(h.clk).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	h.m = m
	return h
}

func (h *testHarness) token(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := jwt.SignHS256(testSecret, "1", "admin", h.clk.Now(), ttl)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return tok
}

func (h *testHarness) persist(t *testing.T, token string, u User) {
	t.Helper()
	if err := h.store.Save(context.Background(), session.Record{Token: token, User: u}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func testUser() User {
	return User{ID: 1, Username: "ann", Email: "ann@example.com", Role: "admin"}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInitialStateIsLoading(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	st := h.m.State()
	if !st.IsLoading || st.IsAuthenticated || st.User != nil {
		t.Fatalf("unexpected initial state: %+v", st)
	}
}

func TestRestoreValidSession(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.persist(t, h.token(t, time.Hour), testUser())

	h.m.Restore(context.Background(), "/")

	st := h.m.State()
	if !st.IsAuthenticated || st.IsLoading {
		t.Fatalf("expected authenticated and not loading, got %+v", st)
	}
	if st.User == nil || *st.User != testUser() {
		t.Fatalf("expected persisted user, got %+v", st.User)
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("restore must not notify, got %d notifications", n)
	}
	if got := h.m.metrics.Value(MetricSessionRestored); got != 1 {
		t.Fatalf("expected MetricSessionRestored=1, got %d", got)
	}
}

func TestRestoreExpiredSessionLogsOutSilently(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.persist(t, h.token(t, -time.Minute), testUser())

	h.m.Restore(context.Background(), "/")

	if h.m.IsAuthenticated() {
		t.Fatal("expected unauthenticated after expired restore")
	}
	if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected store cleared, got %v", err)
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("expired restore must be silent, got %d notifications", n)
	}
	if logout, _ := h.backend.calls(); logout != 1 {
		t.Fatalf("expected one backend logout for the stale token, got %d", logout)
	}
	if got := h.m.metrics.Value(MetricSessionExpired); got != 1 {
		t.Fatalf("expected MetricSessionExpired=1, got %d", got)
	}
}

func TestRestoreMalformedTokenCountsAsExpired(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.persist(t, "not-a-jwt", testUser())

	h.m.Restore(context.Background(), "/")

	if h.m.IsAuthenticated() {
		t.Fatal("malformed token must not authenticate")
	}
	if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected store cleared, got %v", err)
	}
}

func TestRestoreEmptyStore(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Restore(context.Background(), "/")

	st := h.m.State()
	if st.IsAuthenticated || st.IsLoading || st.User != nil {
		t.Fatalf("unexpected state: %+v", st)
	}
	if logout, _ := h.backend.calls(); logout != 0 {
		t.Fatalf("no backend call expected, got %d", logout)
	}
}

func TestRestoreStorageFailureFailsSafe(t *testing.T) {
	store := &faultyStore{MemoryStore: session.NewMemoryStore(), loadErr: errors.Join(session.ErrStorage, errors.New("disk gone"))}
	h := newHarness(t, DefaultConfig(), store)

	h.m.Restore(context.Background(), "/")

	st := h.m.State()
	if st.IsAuthenticated || st.IsLoading {
		t.Fatalf("expected logged out and loaded, got %+v", st)
	}
	if got := h.m.metrics.Value(MetricStorageError); got != 1 {
		t.Fatalf("expected MetricStorageError=1, got %d", got)
	}
}

func TestRestoreCorruptRecordIsDiscarded(t *testing.T) {
	store := &faultyStore{MemoryStore: session.NewMemoryStore(), loadErr: session.ErrCorrupt}
	h := newHarness(t, DefaultConfig(), store)

	h.m.Restore(context.Background(), "/")

	if h.m.IsAuthenticated() {
		t.Fatal("corrupt record must not authenticate")
	}
	if store.clears.Load() != 1 {
		t.Fatalf("expected the orphan entry to be cleared once, got %d", store.clears.Load())
	}
}

func TestRestoreWaitsSplashDelayOnlyOnSplashRoutes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Startup.SplashDelay = 2 * time.Second
	cfg.Startup.SplashRoutes = []string{"/"}
	h := newHarness(t, cfg, nil)
	h.persist(t, h.token(t, time.Hour), testUser())

	done := make(chan struct{})
	go func() {
		h.m.Restore(context.Background(), "/")
		close(done)
	}()

	// The background ticker plus the splash timer.
	h.clk.WaitForTimers(2)
	if st := h.m.State(); !st.IsLoading || st.IsAuthenticated {
		t.Fatalf("expected loading during splash delay, got %+v", st)
	}

	h.clk.Advance(2 * time.Second)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Restore did not finish after the splash delay")
	}
	if st := h.m.State(); st.IsLoading || !st.IsAuthenticated {
		t.Fatalf("expected restored session, got %+v", st)
	}

	// Other entry routes restore immediately.
	h.m.Restore(context.Background(), "/students")
	if h.m.State().IsLoading {
		t.Fatal("non-splash restore should not wait")
	}
}

func TestRestoreSplashDelayHonorsContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Startup.SplashDelay = time.Hour
	h := newHarness(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.m.Restore(ctx, "/")

	if h.m.State().IsLoading {
		t.Fatal("expected Restore to finish when ctx is cancelled")
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Restore(context.Background(), "/")
	h.m.OpenLoginPrompt()
	tok := h.token(t, time.Hour)

	if err := h.m.Login(context.Background(), tok, testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	st := h.m.State()
	if !st.IsAuthenticated || st.User == nil || *st.User != testUser() {
		t.Fatalf("unexpected state after login: %+v", st)
	}
	if st.IsLoginPromptOpen {
		t.Fatal("login must close the prompt")
	}

	rec, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.Token != tok || rec.User != testUser() {
		t.Fatalf("unexpected persisted record: %+v", rec)
	}

	got := h.sink.all()
	if len(got) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(got))
	}
	if got[0].Kind != NotifySuccess || got[0].Title != "Welcome back!" || got[0].Message != "Signed in as ann" {
		t.Fatalf("unexpected notification: %+v", got[0])
	}
	if !got[0].Timestamp.Equal(h.clk.Now()) {
		t.Fatalf("notification should be stamped with the manager clock, got %v", got[0].Timestamp)
	}
}

func TestLoginRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Restore(context.Background(), "/")

	if err := h.m.Login(context.Background(), "  ", testUser()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	bad := testUser()
	bad.Email = "nope"
	if err := h.m.Login(context.Background(), "tok", bad); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}

	if h.m.IsAuthenticated() || len(h.sink.all()) != 0 {
		t.Fatal("rejected login must not change state or notify")
	}
	if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("rejected login must not persist, got %v", err)
	}
}

func TestLoginPersistFailureIsNonFatal(t *testing.T) {
	store := &faultyStore{MemoryStore: session.NewMemoryStore(), saveErr: session.ErrStorage}
	h := newHarness(t, DefaultConfig(), store)

	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login should not fail on storage errors: %v", err)
	}
	if !h.m.IsAuthenticated() {
		t.Fatal("expected in-memory login despite storage failure")
	}
	if got := h.m.metrics.Value(MetricStorageError); got != 1 {
		t.Fatalf("expected MetricStorageError=1, got %d", got)
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name      string
		backendFn error
	}{
		{name: "backend ok"},
		{name: "backend fails", backendFn: &api.Error{Message: "Network error. Please check your connection."}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig(), nil)
			h.backend.logoutErr = tc.backendFn
			if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			h.sink.reset()

			h.m.Logout(context.Background())

			st := h.m.State()
			if st.IsAuthenticated || st.User != nil {
				t.Fatalf("expected logged out, got %+v", st)
			}
			if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("expected empty store, got %v", err)
			}
			got := h.sink.all()
			if len(got) != 1 || got[0].Kind != NotifyInfo || got[0].Title != "Signed out" {
				t.Fatalf("expected one info notification, got %+v", got)
			}
			if logout, _ := h.backend.calls(); logout != 1 {
				t.Fatalf("expected one backend logout, got %d", logout)
			}
			wantFailures := uint64(0)
			if tc.backendFn != nil {
				wantFailures = 1
			}
			if got := h.m.metrics.Value(MetricBackendLogoutFailure); got != wantFailures {
				t.Fatalf("expected MetricBackendLogoutFailure=%d, got %d", wantFailures, got)
			}
		})
	}
}

func TestLogoutWithoutTokenSkipsBackend(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Logout(context.Background())

	if logout, _ := h.backend.calls(); logout != 0 {
		t.Fatalf("expected no backend call without a token, got %d", logout)
	}
	if n := len(h.sink.all()); n != 1 {
		t.Fatalf("explicit logout always notifies, got %d", n)
	}
}

func TestLogoutClearFailureStillResetsState(t *testing.T) {
	store := &faultyStore{MemoryStore: session.NewMemoryStore(), clearErr: session.ErrStorage}
	h := newHarness(t, DefaultConfig(), store)
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	h.m.SilentLogout(context.Background())

	if h.m.IsAuthenticated() {
		t.Fatal("expected in-memory logout despite clear failure")
	}
}

func TestUnauthorizedSignalLogsOutSilently(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.sink.reset()

	for i := 0; i < 3; i++ {
		h.m.Bus().Fire()
	}

	if h.m.IsAuthenticated() {
		t.Fatal("expected logged out after unauthorized signal")
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("signal-driven logout must be silent, got %d notifications", n)
	}
	if logout, _ := h.backend.calls(); logout != 1 {
		t.Fatalf("only the first signal had a token to revoke, got %d backend calls", logout)
	}
	if got := h.m.metrics.Value(MetricUnauthorizedSignal); got != 3 {
		t.Fatalf("expected MetricUnauthorizedSignal=3, got %d", got)
	}
}

func TestSignalDuringLogoutIsIgnored(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.backend.onLogout = func() { h.m.Bus().Fire() }
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		h.m.Logout(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logout deadlocked on a nested unauthorized signal")
	}
	if logout, _ := h.backend.calls(); logout != 1 {
		t.Fatalf("expected one backend logout, got %d", logout)
	}
	if got := h.m.metrics.Value(MetricLogoutSilent); got != 0 {
		t.Fatalf("nested signal must not start a second logout, got %d", got)
	}
}

func TestConcurrentLogoutsAreSafe(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.sink.reset()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.m.SilentLogout(context.Background())
		}()
		go func() {
			defer wg.Done()
			h.m.Bus().Fire()
		}()
	}
	wg.Wait()

	st := h.m.State()
	if st.IsAuthenticated || st.User != nil {
		t.Fatalf("expected logged out, got %+v", st)
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("silent paths must not notify, got %d", n)
	}
	if logout, _ := h.backend.calls(); logout != 1 {
		t.Fatalf("expected the token to be revoked once, got %d", logout)
	}
}

func TestDeleteAccountSuccess(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.sink.reset()

	if err := h.m.DeleteAccount(context.Background()); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if h.m.IsAuthenticated() {
		t.Fatal("expected logged out after deletion")
	}
	if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected store cleared, got %v", err)
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("deletion must not notify from the manager, got %d", n)
	}
	if got := h.m.metrics.Value(MetricDeleteAccountSuccess); got != 1 {
		t.Fatalf("expected MetricDeleteAccountSuccess=1, got %d", got)
	}
}

func TestDeleteAccountFailureLeavesState(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	backendErr := &api.Error{StatusCode: 500, Message: "boom"}
	h.backend.deleteErr = backendErr
	tok := h.token(t, time.Hour)
	if err := h.m.Login(context.Background(), tok, testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.sink.reset()

	err := h.m.DeleteAccount(context.Background())
	if !errors.Is(err, ErrDeleteAccount) {
		t.Fatalf("expected ErrDeleteAccount, got %v", err)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr != backendErr {
		t.Fatalf("expected the backend error to be wrapped, got %v", err)
	}

	st := h.m.State()
	if !st.IsAuthenticated || st.User == nil || *st.User != testUser() {
		t.Fatalf("failed deletion must leave state untouched, got %+v", st)
	}
	rec, loadErr := h.store.Load(context.Background())
	if loadErr != nil || rec.Token != tok {
		t.Fatalf("failed deletion must leave the store untouched, got %+v %v", rec, loadErr)
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("manager must not notify on failure, got %d", n)
	}
}

func TestBackgroundCheckExpiresSessionWithoutLoading(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Restore(context.Background(), "/")
	if err := h.m.Login(context.Background(), h.token(t, 90*time.Second), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.sink.reset()

	var sawLoading atomic.Bool
	cancel := h.m.Watch(func(s State) {
		if s.IsLoading {
			sawLoading.Store(true)
		}
	})
	defer cancel()

	h.clk.Advance(60 * time.Second)
	waitFor(t, "first background check", func() bool {
		return h.m.metrics.Value(MetricBackgroundCheck) >= 1
	})
	if !h.m.IsAuthenticated() {
		t.Fatal("token is still valid after the first check")
	}

	h.clk.Advance(60 * time.Second)
	waitFor(t, "expiry logout", func() bool { return !h.m.IsAuthenticated() })

	if sawLoading.Load() {
		t.Fatal("background check must never set IsLoading")
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("expiry logout must be silent, got %d notifications", n)
	}
}

func TestCheckNowPicksUpExternalLogin(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.Restore(context.Background(), "/")
	h.persist(t, h.token(t, time.Hour), testUser())

	h.m.CheckNow(context.Background())
	if !h.m.IsAuthenticated() {
		t.Fatal("background check should adopt a valid persisted session")
	}

	if err := h.store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	h.m.CheckNow(context.Background())
	if h.m.IsAuthenticated() {
		t.Fatal("background check should drop a session removed from the store")
	}
}

func TestLoginPromptToggle(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.m.OpenLoginPrompt()
	if !h.m.State().IsLoginPromptOpen {
		t.Fatal("expected prompt open")
	}
	h.m.CloseLoginPrompt()
	h.m.CloseLoginPrompt()
	if h.m.State().IsLoginPromptOpen {
		t.Fatal("expected prompt closed")
	}
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("prompt toggles must not notify, got %d", n)
	}
}

func TestWatchAndCancel(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)

	var mu sync.Mutex
	var seen []State
	cancel := h.m.Watch(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	h.m.Restore(context.Background(), "/students")
	h.m.OpenLoginPrompt()
	h.m.OpenLoginPrompt()
	cancel()
	cancel()
	h.m.CloseLoginPrompt()

	mu.Lock()
	defer mu.Unlock()
	// Restore flips IsLoading off (it starts on), then the prompt opens once.
	if len(seen) != 2 {
		t.Fatalf("expected 2 state changes, got %d: %+v", len(seen), seen)
	}
	if seen[0].IsLoading || !seen[1].IsLoginPromptOpen {
		t.Fatalf("unexpected sequence: %+v", seen)
	}
}

func TestStateSnapshotIsDetached(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	st := h.m.State()
	st.User.Username = "mallory"
	if h.m.User().Username != "ann" {
		t.Fatal("mutating a snapshot must not affect the manager")
	}
}

func TestCloseUnsubscribesAndStopsTicker(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if h.m.Bus().Listeners() != 1 {
		t.Fatalf("expected one bus listener, got %d", h.m.Bus().Listeners())
	}
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := h.m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.m.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if h.m.Bus().Listeners() != 0 {
		t.Fatalf("expected no listeners after Close, got %d", h.m.Bus().Listeners())
	}
	if h.clk.PendingCount() != 0 {
		t.Fatalf("expected ticker stopped, %d timers pending", h.clk.PendingCount())
	}

	h.m.Bus().Fire()
	if !h.m.IsAuthenticated() {
		t.Fatal("signals after Close must not act on the manager")
	}
	if err := h.m.Login(context.Background(), "tok", testUser()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
}

func TestDisableBackgroundCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.DisableBackgroundCheck = true
	h := newHarness(t, cfg, nil)
	if h.clk.PendingCount() != 0 {
		t.Fatalf("expected no ticker, got %d timers", h.clk.PendingCount())
	}
}

func TestBuilderRejectsReuseAndBadConfig(t *testing.T) {
	b := New().WithStore(session.NewMemoryStore()).WithBackend(&stubBackend{})
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Session.CheckInterval = 0
	if _, err := New().WithConfig(cfg).WithBackend(&stubBackend{}).Build(); err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}

func TestAsyncNotificationsDeliveredByClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notifications.Async = true
	cfg.Notifications.BufferSize = 8
	h := newHarness(t, cfg, nil)

	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.m.Logout(context.Background())
	if err := h.m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got := h.sink.all()
	if len(got) != 2 || got[0].Kind != NotifySuccess || got[1].Kind != NotifyInfo {
		t.Fatalf("expected success then info, got %+v", got)
	}
	if h.m.NotificationsDropped() != 0 {
		t.Fatalf("unexpected drops: %d", h.m.NotificationsDropped())
	}
}

func TestNotificationsCarryDisplayTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notifications.DisplayFor = 3 * time.Second
	h := newHarness(t, cfg, nil)

	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	got := h.sink.all()
	if len(got) != 1 {
		t.Fatalf("expected one notification, got %d", len(got))
	}
	if want := h.clk.Now().Add(3 * time.Second); !got[0].ExpiresAt.Equal(want) {
		t.Fatalf("expected ExpiresAt %v, got %v", want, got[0].ExpiresAt)
	}
}

func TestNotificationsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notifications.Enabled = false
	h := newHarness(t, cfg, nil)

	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.m.Logout(context.Background())
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("expected no notifications when disabled, got %d", n)
	}
}

// gatedStore parks the first Load after arm until release is closed.
type gatedStore struct {
	*session.MemoryStore
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: session.NewMemoryStore(),
		reached:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (s *gatedStore) Load(ctx context.Context) (session.Record, error) {
	rec, err := s.MemoryStore.Load(ctx)
	if s.armed.CompareAndSwap(true, false) {
		close(s.reached)
		<-s.release
	}
	return rec, err
}

func waitClosed(t *testing.T, what string, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// loginDuringLoad parks the store read made by first, runs Login while it
// is parked and then lets first finish. Login must not complete while the
// read is still pending.
func loginDuringLoad(t *testing.T, h *testHarness, store *gatedStore, token string, first func()) {
	t.Helper()

	store.armed.Store(true)
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		first()
	}()
	waitClosed(t, "store read", store.reached)

	loginDone := make(chan error, 1)
	go func() { loginDone <- h.m.Login(context.Background(), token, testUser()) }()

	select {
	case err := <-loginDone:
		t.Fatalf("Login finished while a store read was in flight: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(store.release)
	waitClosed(t, "interrupted operation", firstDone)
	select {
	case err := <-loginDone:
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Login")
	}
}

func assertSignedInWith(t *testing.T, h *testHarness, token string) {
	t.Helper()
	st := h.m.State()
	if !st.IsAuthenticated || st.User == nil || *st.User != testUser() {
		t.Fatalf("expected the new login to stand, got %+v", st)
	}
	rec, err := h.store.Load(context.Background())
	if err != nil || rec.Token != token {
		t.Fatalf("expected the new record to stay persisted, got %+v %v", rec, err)
	}
}

func TestCheckOnEmptyStoreDoesNotUndoConcurrentLogin(t *testing.T) {
	store := newGatedStore()
	h := newHarness(t, DefaultConfig(), store)
	h.m.Restore(context.Background(), "/")

	tok := h.token(t, time.Hour)
	loginDuringLoad(t, h, store, tok, func() { h.m.CheckNow(context.Background()) })

	assertSignedInWith(t, h, tok)
	if logout, _ := h.backend.calls(); logout != 0 {
		t.Fatalf("no backend logout expected, got %d", logout)
	}
}

func TestExpiredCheckDoesNotRevokeConcurrentLogin(t *testing.T) {
	store := newGatedStore()
	h := newHarness(t, DefaultConfig(), store)
	h.persist(t, h.token(t, -time.Minute), testUser())

	tok := h.token(t, time.Hour)
	loginDuringLoad(t, h, store, tok, func() { h.m.CheckNow(context.Background()) })

	assertSignedInWith(t, h, tok)
	if logout, _ := h.backend.calls(); logout != 1 {
		t.Fatalf("expected only the stale token to be revoked, got %d backend calls", logout)
	}
	if got := h.m.metrics.Value(MetricSessionExpired); got != 1 {
		t.Fatalf("expected MetricSessionExpired=1, got %d", got)
	}
}

func TestUnauthorizedSignalDoesNotEndLaterLogin(t *testing.T) {
	store := newGatedStore()
	h := newHarness(t, DefaultConfig(), store)
	if err := h.m.Login(context.Background(), h.token(t, time.Hour), testUser()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	tok, err := jwt.SignHS256(testSecret, "1", "admin", h.clk.Now().Add(time.Second), time.Hour)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	loginDuringLoad(t, h, store, tok, func() { h.m.Bus().Fire() })

	assertSignedInWith(t, h, tok)
	if logout, _ := h.backend.calls(); logout != 1 {
		t.Fatalf("expected the first session to be revoked once, got %d", logout)
	}
	if got := h.m.metrics.Value(MetricLogoutSilent); got != 1 {
		t.Fatalf("expected MetricLogoutSilent=1, got %d", got)
	}
}
