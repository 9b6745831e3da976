package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is used when New is given an empty base URL.
	DefaultBaseURL = "http://localhost:5000/api"
	// DefaultTimeout bounds every request unless WithHTTPClient overrides it.
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// TokenSource yields the bearer token for outgoing requests. An empty
// token means the request goes out unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StoreTokens reads the bearer token from a session store on every request.
// A missing or half-written record yields no token.
func StoreTokens(store session.Store) TokenSource {
	return TokenFunc(func(ctx context.Context) (string, error) {
		rec, err := store.Load(ctx)
		switch {
		case err == nil:
			return rec.Token, nil
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
			return "", nil
		default:
			return "", err
		}
	})
}

// Signaler is notified whenever a response has status 401.
type Signaler interface {
	Fire()
}

// Client talks to the backend REST API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	signals Signaler
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedSignal sets the signal fired on 401 responses.
func WithUnauthorizedSignal(s Signaler) Option {
	return func(c *Client) { c.signals = s }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type requestOptions struct {
	// quiet suppresses the unauthorized signal.
	quiet bool
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, opts requestOptions) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.Warn("token source failed; sending request unauthenticated",
				"method", method, "path", path, "error", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path,
			"request_id", requestID, "error", err)
		return &Error{
			Message:   networkMessage,
			RequestID: requestID,
			kind:      ErrNetwork,
			cause:     err,
		}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("api: decode %s %s response: %w", method, path, err)
		}
		return nil
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &payload)

	apiErr := &Error{
		StatusCode: resp.StatusCode,
		Message:    messageFor(resp.StatusCode, payload.Error, payload.Message),
		RequestID:  requestID,
		kind:       kindForStatus(resp.StatusCode),
	}
	if resp.StatusCode == http.StatusUnauthorized && !opts.quiet && c.signals != nil {
		c.signals.Fire()
	}
	return apiErr
}
