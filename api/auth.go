package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goSession/session"
)

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	Token string       `json:"token"`
	User  session.User `json:"user"`
}

// SignupRequest is the signup payload.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *AuthResponse) check(op string) error {
	if r.Token == "" {
		return fmt.Errorf("api: %s response carried no token", op)
	}
	return nil
}

// Login exchanges credentials for a session token. Bad credentials come
// back as an *Error matching ErrUnauthorized.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out, requestOptions{}); err != nil {
		return nil, err
	}
	if err := out.check("login"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup creates an account and returns its first session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", req, &out, requestOptions{}); err != nil {
		return nil, err
	}
	if err := out.check("signup"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the current token server-side. It never fires the
// unauthorized signal: the caller is already logging out.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, requestOptions{quiet: true})
}

// DeleteAccount deletes the signed-in account. A 401 is returned like any
// other failure and does not fire the unauthorized signal; the caller
// decides what a failed deletion means for the session.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/auth/delete", nil, nil, requestOptions{quiet: true})
}

// ListUsers returns every account (admin only). The backend answers with
// either a bare array or {"users": [...]}.
func (c *Client) ListUsers(ctx context.Context) ([]session.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/auth/", nil, &raw, requestOptions{}); err != nil {
		return nil, err
	}

	var users []session.User
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &users); err != nil {
			return nil, fmt.Errorf("api: decode users: %w", err)
		}
		return users, nil
	}
	var wrapped struct {
		Users []session.User `json:"users"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("api: decode users: %w", err)
	}
	return wrapped.Users, nil
}
