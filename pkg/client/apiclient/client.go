// Package apiclient is the BookWorm HTTP client used by the client core and
// the CLI.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/ratelimit"
	"github.com/bookwormapp/bookworm/pkg/client/tokenstore"
)

const (
	defaultTimeout = 30 * time.Second

	// Client side throttle per backend host.
	defaultRPS   = 10.0
	defaultBurst = 20

	maxResponseBytes = 10 << 20
)

// Client talks to the BookWorm REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  tokenstore.Store
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	mu    sync.RWMutex
	hooks []func()
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	rps        float64
	burst      int
	hooks      []func()
}

// WithHTTPClient uses hc for requests. Its transport is wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRateLimit overrides the per-host request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rps = rps
		o.burst = burst
	}
}

// WithUnauthorizedHook registers fn to run after a 401 cleared the token.
func WithUnauthorizedHook(fn func()) Option {
	return func(o *options) { o.hooks = append(o.hooks, fn) }
}

// New creates a client for the API at baseURL, e.g. "http://localhost:3000".
func New(baseURL string, tokens tokenstore.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if tokens == nil {
		tokens = tokenstore.NewMemoryStore("")
	}

	o := options{rps: defaultRPS, burst: defaultBurst}
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{Timeout: defaultTimeout}
	if o.httpClient != nil {
		copied := *o.httpClient
		hc = &copied
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		baseURL: u,
		tokens:  tokens,
		limiter: ratelimit.New(o.rps, o.burst),
		logger:  logger.OrDiscard(o.logger),
		hooks:   o.hooks,
	}
	hc.Transport = &authTransport{base: base, client: c}
	c.http = hc

	return c, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// OnUnauthorized registers fn to run whenever the server answers 401. The
// token store is already cleared when fn runs.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Tokens returns the client's token store.
func (c *Client) Tokens() tokenstore.Store {
	return c.tokens
}

func (c *Client) handleUnauthorized(req *http.Request) {
	// The request context may already be cancelled by the caller.
	ctx := context.WithoutCancel(req.Context())
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Error("failed to clear token after 401", "error", err)
	}

	c.mu.RLock()
	hooks := append([]func(){}, c.hooks...)
	c.mu.RUnlock()

	c.logger.Debug("unauthorized response", "path", req.URL.Path, "hooks", len(hooks))
	for _, fn := range hooks {
		fn()
	}
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBooks fetches one page of the public feed.
func (c *Client) GetBooks(ctx context.Context, page, limit int) (*BookPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out BookPage
	if err := c.do(ctx, http.MethodGet, "/api/books", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserBooks lists the authenticated user's books, newest first.
func (c *Client) GetUserBooks(ctx context.Context) ([]Book, error) {
	var out []Book
	if err := c.do(ctx, http.MethodGet, "/api/books/user", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBook lists a new book owned by the authenticated user.
func (c *Client) CreateBook(ctx context.Context, in CreateBookInput) (*Book, error) {
	var out Book
	if err := c.do(ctx, http.MethodPost, "/api/books", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteBook removes one of the authenticated user's books.
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/books/"+url.PathEscape(id), nil, nil, &messageResponse{})
}

// SearchBooks runs a full-text search over titles and captions.
func (c *Client) SearchBooks(ctx context.Context, query string, limit int) (*SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/books/search", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports the backend status.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes one call and normalizes every failure into *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx, c.baseURL.Host); err != nil {
		return &Error{Message: err.Error(), Err: err}
	}

	// path is already escaped; JoinPath keeps escapes such as %2F intact.
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Message: "encode request: " + err.Error(), Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &Error{Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Message: "read response: " + err.Error(), Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &Error{Message: errorMessage(resp.StatusCode, data), Status: resp.StatusCode}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Message: "decode response: " + err.Error(), Status: resp.StatusCode, Err: err}
	}
	return nil
}

// errorMessage prefers the body's "message" field and falls back to the
// status text.
func errorMessage(status int, body []byte) string {
	var msg messageResponse
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		return msg.Message
	}
	return http.StatusText(status)
}
