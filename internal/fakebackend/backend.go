// Package fakebackend is an in-memory stand-in for the student-records REST
// backend. Tests and the headless example run goSession against it through
// net/http/httptest. It issues real HS256 tokens so the client's expiry
// decoding is exercised end to end.
package fakebackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/go-chi/chi/v5"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User is an account as the backend returns it.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Student is a student record as the backend returns it.
type Student struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Age       int    `json:"age"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type account struct {
	User
	passwordHash string
}

type failure struct {
	status  int
	message string
}

// Backend is safe for concurrent use.
type Backend struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time

	mu          sync.Mutex
	nextUserID  int64
	nextStudent int64
	accounts    map[int64]*account
	students    map[int64]*Student
	revoked     map[string]bool
	failures    map[string]failure
	calls       map[string]int
	omitRole    bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithTokenTTL sets the lifetime of issued tokens (default one hour).
func WithTokenTTL(d time.Duration) Option {
	return func(b *Backend) { b.tokenTTL = d }
}

// WithClock sets the time source used to issue and verify tokens.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithoutRoleInResponses drops the role field from returned users, the way
// some backend versions do.
func WithoutRoleInResponses() Option {
	return func(b *Backend) { b.omitRole = true }
}

// New returns an empty Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		secret:      []byte("fakebackend-secret"),
		tokenTTL:    time.Hour,
		now:         time.Now,
		nextUserID:  1,
		nextStudent: 1,
		accounts:    make(map[int64]*account),
		students:    make(map[int64]*Student),
		revoked:     make(map[string]bool),
		failures:    make(map[string]failure),
		calls:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddUser registers an account and returns its id.
func (b *Backend) AddUser(username, email, password, role string) int64 {
	hash := hashPassword(password)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, email, hash, role)
}

func (b *Backend) addUserLocked(username, email, passwordHash, role string) int64 {
	id := b.nextUserID
	b.nextUserID++
	b.accounts[id] = &account{
		User:         User{ID: id, Username: username, Email: email, Role: role},
		passwordHash: passwordHash,
	}
	return id
}

// IssueToken signs a token for userID with the given lifetime, which may
// be negative to produce an already expired token.
func (b *Backend) IssueToken(userID int64, ttl time.Duration) (string, error) {
	b.mu.Lock()
	role := ""
	if acct, ok := b.accounts[userID]; ok {
		role = acct.Role
	}
	b.mu.Unlock()
	return jwt.SignHS256(b.secret, strconv.FormatInt(userID, 10), role, b.now(), ttl)
}

// FailNext makes the next request matching "METHOD /path" answer with
// status and message.
func (b *Backend) FailNext(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, message: message}
}

// Calls returns how many requests hit "METHOD /path".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Revoked reports whether token has been logged out.
func (b *Backend) Revoked(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked[token]
}

// HasUser reports whether the account still exists.
func (b *Backend) HasUser(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.accounts[id]
	return ok
}

// Handler returns the HTTP surface, rooted at "/" (mount it under /api
// with http.StripPrefix if needed).
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", b.track("POST /auth/login", b.handleLogin))
		r.Post("/signup", b.track("POST /auth/signup", b.handleSignup))
		r.Post("/logout", b.track("POST /auth/logout", b.authed(b.handleLogout)))
		r.Delete("/delete", b.track("DELETE /auth/delete", b.authed(b.handleDelete)))
		r.Get("/", b.track("GET /auth/", b.authed(b.handleListUsers)))
	})

	r.Route("/students", func(r chi.Router) {
		r.Get("/", b.track("GET /students", b.authed(b.handleListStudents)))
		r.Post("/", b.track("POST /students", b.authed(b.handleCreateStudent)))
		r.Get("/{id}", b.track("GET /students/{id}", b.authed(b.handleGetStudent)))
		r.Put("/{id}", b.track("PUT /students/{id}", b.authed(b.handleUpdateStudent)))
		r.Delete("/{id}", b.track("DELETE /students/{id}", b.authed(b.handleDeleteStudent)))
	})

	return r
}

func (b *Backend) track(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[route]++
		f, failing := b.failures[route]
		delete(b.failures, route)
		b.mu.Unlock()

		if failing {
			writeError(w, f.status, f.message)
			return
		}
		next(w, r)
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, acct *account, token string)

func (b *Backend) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		sub, err := jwt.VerifyHS256(b.secret, token, b.now())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		b.mu.Lock()
		acct, exists := b.accounts[id]
		revoked := b.revoked[token]
		b.mu.Unlock()
		if !exists || revoked {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(w, r, acct, token)
	}
}

func (b *Backend) publicUser(u User) User {
	if b.omitRole {
		u.Role = ""
	}
	return u
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	var found *account
	for _, acct := range b.accounts {
		if strings.EqualFold(acct.Email, req.Email) {
			found = acct
			break
		}
	}
	b.mu.Unlock()
	if found == nil || !verifyPassword(req.Password, found.passwordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := b.IssueToken(found.ID, b.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": b.publicUser(found.User)})
}

func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(strings.TrimSpace(req.Username)) < 3 || !emailPattern.MatchString(req.Email) || len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Invalid signup details")
		return
	}

	hash := hashPassword(req.Password)

	b.mu.Lock()
	for _, acct := range b.accounts {
		if strings.EqualFold(acct.Email, req.Email) {
			b.mu.Unlock()
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
	}
	id := b.addUserLocked(req.Username, req.Email, hash, "student")
	user := b.accounts[id].User
	b.mu.Unlock()

	token, err := b.IssueToken(id, b.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": b.publicUser(user)})
}

func (b *Backend) handleLogout(w http.ResponseWriter, _ *http.Request, _ *account, token string) {
	b.mu.Lock()
	b.revoked[token] = true
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *Backend) handleDelete(w http.ResponseWriter, _ *http.Request, acct *account, token string) {
	b.mu.Lock()
	delete(b.accounts, acct.ID)
	b.revoked[token] = true
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *Backend) handleListUsers(w http.ResponseWriter, _ *http.Request, acct *account, _ string) {
	if acct.Role != "admin" {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}
	b.mu.Lock()
	users := make([]User, 0, len(b.accounts))
	for _, a := range b.accounts {
		users = append(users, b.publicUser(a.User))
	}
	b.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (b *Backend) handleListStudents(w http.ResponseWriter, _ *http.Request, _ *account, _ string) {
	b.mu.Lock()
	out := make([]Student, 0, len(b.students))
	for _, s := range b.students {
		out = append(out, *s)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"students": out})
}

type studentInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Age       int    `json:"age"`
}

func decodeStudent(r *http.Request) (studentInput, error) {
	var in studentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, err
	}
	if in.FirstName == "" || in.LastName == "" || !emailPattern.MatchString(in.Email) || in.Age <= 0 {
		return in, errors.New("invalid student")
	}
	return in, nil
}

func (b *Backend) handleCreateStudent(w http.ResponseWriter, r *http.Request, _ *account, _ string) {
	in, err := decodeStudent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid student details")
		return
	}
	stamp := b.now().UTC().Format(time.RFC3339)

	b.mu.Lock()
	s := &Student{
		ID:        b.nextStudent,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Age:       in.Age,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
	b.nextStudent++
	b.students[s.ID] = s
	out := *s
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Student created", "student": out})
}

func (b *Backend) lookupStudent(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid student id")
		return 0, false
	}
	b.mu.Lock()
	_, ok := b.students[id]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Student not found")
		return 0, false
	}
	return id, true
}

func (b *Backend) handleGetStudent(w http.ResponseWriter, r *http.Request, _ *account, _ string) {
	id, ok := b.lookupStudent(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	out := *b.students[id]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleUpdateStudent(w http.ResponseWriter, r *http.Request, _ *account, _ string) {
	id, ok := b.lookupStudent(w, r)
	if !ok {
		return
	}
	in, err := decodeStudent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid student details")
		return
	}

	b.mu.Lock()
	s, exists := b.students[id]
	if !exists {
		b.mu.Unlock()
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	s.FirstName, s.LastName, s.Email, s.Age = in.FirstName, in.LastName, in.Email, in.Age
	s.UpdatedAt = b.now().UTC().Format(time.RFC3339)
	out := *s
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"student": out})
}

func (b *Backend) handleDeleteStudent(w http.ResponseWriter, r *http.Request, _ *account, _ string) {
	id, ok := b.lookupStudent(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.students, id)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Student deleted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
