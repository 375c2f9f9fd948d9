package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"inventra.org/internal/auth"
)

// Backend is the contract the manager needs from the auth API. Pluggable so
// tests can script responses without a network.
type Backend interface {
	Login(ctx context.Context, login, password string) (*Session, error)
	Me(ctx context.Context, token string) (*auth.User, error)
	Permissions(ctx context.Context, token string) (*Grants, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, token string, upd auth.ProfileUpdate) (*auth.User, error)
}

// Session is a freshly minted token pair plus the authenticated user.
type Session struct {
	User         *auth.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Grants is the resolved permission view served by the permissions endpoint.
type Grants struct {
	Permissions []string        `json:"permissions"`
	Features    map[string]bool `json:"features"`
	ReportScope string          `json:"report_scope"`
	CanApprove  bool            `json:"can_approve"`
}

// Profile is the authenticated user together with their resolved grants.
type Profile struct {
	User   *auth.User
	Grants Grants
}

// Has reports whether the profile holds the named permission.
func (p *Profile) Has(permission string) bool {
	if p == nil {
		return false
	}
	for _, g := range p.Grants.Permissions {
		if g == permission {
			return true
		}
	}
	return false
}

// Client talks to the inventra auth API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Backend = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireSession struct {
	User         *auth.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

func (w wireSession) toSession() *Session {
	return &Session{
		User:         w.User,
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		ExpiresAt:    w.ExpiresAt,
	}
}

// Login exchanges credentials for a session. Invalid credentials surface as
// auth.ErrInvalidCredentials with no further detail.
func (c *Client) Login(ctx context.Context, login, password string) (*Session, error) {
	var out wireSession
	err := c.call(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"username": login,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

// Register creates a staff account and returns its first session.
func (c *Client) Register(ctx context.Context, username, email, password, name string) (*Session, error) {
	var out wireSession
	err := c.call(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
		"name":     name,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

// Me returns the identity behind a token, proving the token is still accepted
// server-side.
func (c *Client) Me(ctx context.Context, token string) (*auth.User, error) {
	var out struct {
		User *auth.User `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Permissions fetches the resolved grant set for the token's user.
func (c *Client) Permissions(ctx context.Context, token string) (*Grants, error) {
	var out Grants
	if err := c.call(ctx, http.MethodGet, "/auth/permissions", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates the refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var out wireSession
	err := c.call(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

// Logout revokes the server-side refresh chain for the token's user.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// UpdateProfile applies a partial self-service update.
func (c *Client) UpdateProfile(ctx context.Context, token string, upd auth.ProfileUpdate) (*auth.User, error) {
	body := map[string]*string{}
	if upd.Name != nil {
		body["name"] = upd.Name
	}
	if upd.Email != nil {
		body["email"] = upd.Email
	}
	if upd.Password != nil {
		body["password"] = upd.Password
	}
	var out struct {
		User *auth.User `json:"user"`
	}
	if err := c.call(ctx, http.MethodPut, "/auth/profile", token, body, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) call(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("session: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("session: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("session: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("session: decode response: %w", err)
	}
	return nil
}

// apiError maps the server's error envelope onto the shared auth sentinels so
// callers can branch with errors.Is.
func apiError(resp *http.Response, path string) error {
	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&envelope)
	msg := envelope.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if path == "/auth/login" {
			return fmt.Errorf("%w: %s", auth.ErrInvalidCredentials, msg)
		}
		return fmt.Errorf("%w: %s", auth.ErrInvalidInput, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", auth.ErrTokenInvalid, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", auth.ErrForbidden, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", auth.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", auth.ErrConflict, msg)
	default:
		return fmt.Errorf("session: %s failed with status %d: %s", path, resp.StatusCode, msg)
	}
}
