// Package storefront is the HTTP client for the remote bookstore API: the
// signed-in user's cart and the token/user endpoints.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 10 * time.Second
	cartPath        = "/cart"
	tokenPath       = "/token"
	currentUserPath = "/users/me"

	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("storefront base url is required")

// TokenSource supplies the bearer token attached to authenticated calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client talks to the storefront API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	tokens     TokenSource
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit throttles outgoing requests. A non-positive rate disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// NewClient builds a storefront client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// TokenPair is what the token endpoint issues on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// User is the signed-in account.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Admin     bool   `json:"admin"`
}

// DisplayName joins first and last name, falling back to the email.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Login exchanges credentials for tokens. Bad credentials yield UNAUTHORIZED.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	form := url.Values{}
	form.Set("username", strings.TrimSpace(email))
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var pair TokenPair
	if err := c.do(req, "login", &pair, http.StatusOK); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "incorrect email or password")
		}
		return nil, err
	}
	if strings.TrimSpace(pair.AccessToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeRemote, "login response missing access token")
	}
	return &pair, nil
}

// CurrentUser resolves the account behind token, or behind the token source
// when token is empty.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, currentUserPath, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	var user User
	if err := c.do(req, "current user", &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRemote, err, "build storefront request")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRemote, err, "marshal storefront request")
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// authorize attaches the bearer token. A missing token is UNAUTHORIZED.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no session token available")
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no session token available")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// do sends req and decodes a JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, op string, out any, accepted ...int) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeRemote, err, op+" throttled")
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if !statusAccepted(resp.StatusCode, accepted) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusUnauthorized {
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, op+" rejected: session not valid")
		}
		return pkgerrors.Wrap(pkgerrors.CodeRemote, cause, op+" request failed")
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "decode "+op+" response")
	}
	return nil
}

func statusAccepted(status int, accepted []int) bool {
	for _, code := range accepted {
		if status == code {
			return true
		}
	}
	return false
}
