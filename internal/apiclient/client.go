// Package apiclient is a typed HTTP client for the CRM API.  Sessions live
// in a cookie jar, so a rotation performed by the server is picked up on
// the next call without any client-side refresh logic.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/pipeline-crm/internal/account"
	"github.com/iliyamo/pipeline-crm/internal/analytics"
	"github.com/iliyamo/pipeline-crm/internal/middleware"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/pipeline"
)

const userAgent = "pipeline-crm-client/1.0"

// APIError is a non-2xx envelope returned by the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// StatusCode lets callers outside this package classify the error without
// importing it.
func (e *APIError) StatusCode() int { return e.Status }

// IsUnauthenticated reports whether err carries a 401 from the server.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to one CRM server.
type Client struct {
	base *url.URL
	http *http.Client
}

type Option func(*Client)

// WithTimeout overrides the 30 second request timeout.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.http.Timeout = d } }

// WithTransport replaces the round tripper, e.g. with an httptest server's.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and host", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{base: u, http: &http.Client{Jar: jar, Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tokens returns the session cookies currently held by the jar.
func (c *Client) Tokens() (access, refresh string) {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		switch ck.Name {
		case middleware.AccessCookie:
			access = ck.Value
		case middleware.RefreshCookie:
			refresh = ck.Value
		}
	}
	return access, refresh
}

// SetTokens seeds the jar with a previously saved session.  Empty values
// are skipped.
func (c *Client) SetTokens(access, refresh string) {
	var cookies []*http.Cookie
	if access != "" {
		cookies = append(cookies, &http.Cookie{Name: middleware.AccessCookie, Value: access, Path: "/"})
	}
	if refresh != "" {
		cookies = append(cookies, &http.Cookie{Name: middleware.RefreshCookie, Value: refresh, Path: "/"})
	}
	if len(cookies) > 0 {
		c.http.Jar.SetCookies(c.base, cookies)
	}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do sends body as JSON and decodes the envelope's data into out.  It
// returns the envelope message so soft failures can be told apart.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (string, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return "", &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if env.Status == 0 {
		env.Status = resp.StatusCode
	}
	if env.Status >= 400 {
		return env.Message, &APIError{Status: env.Status, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env.Message, fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Message, nil
}

// Login starts a session and returns the signed-in user.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	var u model.User
	_, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &u)
	return u, err
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	return err
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	_, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u)
	return u, err
}

// ClientInput is the editable part of a client.  Stage is only read on
// create.
type ClientInput struct {
	Name      string      `json:"name"`
	Company   string      `json:"company"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	DealValue int64       `json:"deal_value"`
	Stage     model.Stage `json:"stage,omitempty"`
	Notes     string      `json:"notes"`
}

func (c *Client) Clients(ctx context.Context) ([]model.Client, error) {
	var out []model.Client
	_, err := c.do(ctx, http.MethodGet, "/api/client", nil, &out)
	return out, err
}

func (c *Client) CreateClient(ctx context.Context, in ClientInput) (model.Client, error) {
	var out model.Client
	_, err := c.do(ctx, http.MethodPost, "/api/client", in, &out)
	return out, err
}

func (c *Client) EditClient(ctx context.Context, id string, in ClientInput) error {
	body := struct {
		ID string `json:"id"`
		ClientInput
	}{ID: id, ClientInput: in}
	_, err := c.do(ctx, http.MethodPut, "/api/client", body, nil)
	return err
}

func (c *Client) MoveClient(ctx context.Context, id string, stage model.Stage) error {
	_, err := c.do(ctx, http.MethodPatch, "/api/client", map[string]string{"id": id, "stage": string(stage)}, nil)
	return err
}

// DeleteClient reports false when the server found nothing to delete.
func (c *Client) DeleteClient(ctx context.Context, id string) (bool, error) {
	msg, err := c.do(ctx, http.MethodDelete, "/api/client", map[string]string{"clientId": id}, nil)
	if err != nil {
		return false, err
	}
	return msg != pipeline.MsgCannotDelete, nil
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var out []model.User
	_, err := c.do(ctx, http.MethodGet, "/api/users", nil, &out)
	return out, err
}

func (c *Client) InviteUser(ctx context.Context, name, email, role string) (account.Invitation, error) {
	var out account.Invitation
	_, err := c.do(ctx, http.MethodPost, "/api/users", map[string]string{"name": name, "email": email, "role": role}, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, id, name, email string) error {
	_, err := c.do(ctx, http.MethodPut, "/api/users/profile", map[string]string{"id": id, "name": name, "email": email}, nil)
	return err
}

func (c *Client) ChangePassword(ctx context.Context, userID, current, next string) error {
	body := map[string]string{"userId": userID, "currentPassword": current, "newPassword": next}
	_, err := c.do(ctx, http.MethodPut, "/api/users/password", body, nil)
	return err
}

func (c *Client) SetUserActive(ctx context.Context, id string, active bool) error {
	body := struct {
		ID       string `json:"id"`
		IsActive bool   `json:"isActive"`
	}{id, active}
	_, err := c.do(ctx, http.MethodPatch, "/api/users/status", body, nil)
	return err
}

func (c *Client) Analytics(ctx context.Context) (analytics.Summary, error) {
	var out analytics.Summary
	_, err := c.do(ctx, http.MethodGet, "/api/analytics", nil, &out)
	return out, err
}
