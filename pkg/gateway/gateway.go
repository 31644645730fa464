package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vitalsync/vitalsync/pkg/log"
	"github.com/vitalsync/vitalsync/pkg/metrics"
	"github.com/vitalsync/vitalsync/pkg/types"
)

// TokenStore persists the session token pair in secure storage
type TokenStore interface {
	Load() (types.TokenPair, error)
	Save(pair types.TokenPair) error
	Clear() error
}

// Options configures a gateway Client
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	TokenStore TokenStore
	// SessionSink is invoked once when the refresh token itself is
	// rejected (process-wide logout signal)
	SessionSink func()
	UserAgent   string
	Timeout     time.Duration
}

// Client executes authenticated requests against the remote API,
// hiding the token lifecycle from callers. The token pair is the only
// shared mutable state in the sync core; all access is linearized
// through the refresh mutex.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenStore
	sessionSink func()
	userAgent   string

	mu   sync.Mutex
	pair types.TokenPair
	gen  uint64 // incremented on each successful refresh
}

// Request describes one remote API call
type Request struct {
	Method string
	Path   string
	Body   any
}

// Response carries the decoded outcome of a successful call
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into v
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// NewClient creates a gateway client
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if opts.TokenStore == nil {
		return nil, fmt.Errorf("gateway token store is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	pair, err := opts.TokenStore.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session tokens: %w", err)
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		tokens:      opts.TokenStore,
		sessionSink: opts.SessionSink,
		userAgent:   strings.TrimSpace(opts.UserAgent),
		pair:        pair,
	}, nil
}

// Do executes a request with the current access token. On 401 it
// performs a single-flight token refresh and retries exactly once.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	token, gen := c.currentToken()
	if token == "" {
		return nil, types.ErrNotAuthenticated
	}

	resp, err := c.issue(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.classify(req, resp)
	}

	// Retry budget: exactly one retry-after-refresh, never loop
	token, err = c.refreshAfter(ctx, gen)
	if err != nil {
		return nil, err
	}
	resp, err = c.issue(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, c.invalidateSession()
	}
	return c.classify(req, resp)
}

// currentToken returns the access token and its refresh generation
func (c *Client) currentToken() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair.AccessToken, c.gen
}

func (c *Client) issue(ctx context.Context, req Request, token string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(req.Method, "error").Inc()
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	metrics.RemoteRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(httpResp.StatusCode)).Inc()

	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

// classify maps a non-401 response to a typed outcome
func (c *Client) classify(req Request, resp *Response) (*Response, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, types.NewTransientError(resp.StatusCode, string(resp.Body))
	default:
		log.Logger.Warn().
			Str("component", "gateway").
			Str("method", req.Method).
			Str("path", req.Path).
			Int("status", resp.StatusCode).
			Msg("Remote rejected request")
		return nil, types.NewPermanentError(resp.StatusCode, string(resp.Body))
	}
}

// refreshAfter performs the single-flight token refresh. The caller
// passes the generation its 401 was observed under; if another caller
// already refreshed (generation advanced while waiting on the mutex),
// the fresh token is returned without a second refresh call.
func (c *Client) refreshAfter(ctx context.Context, staleGen uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != staleGen {
		return c.pair.AccessToken, nil
	}
	if c.pair.RefreshToken == "" {
		return "", c.invalidateSessionLocked()
	}

	metrics.TokenRefreshesTotal.Inc()

	body, err := json.Marshal(map[string]string{"refresh_token": c.pair.RefreshToken})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		// Refresh token revoked or expired: fatal, logout
		return "", c.invalidateSessionLocked()
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		return "", types.NewTransientError(httpResp.StatusCode, string(respBody))
	}

	var pair types.TokenPair
	if err := json.Unmarshal(respBody, &pair); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if err := c.tokens.Save(pair); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	c.pair = pair
	c.gen++

	log.Logger.Info().Str("component", "gateway").Msg("Session tokens refreshed")
	return c.pair.AccessToken, nil
}

// SetTokens installs a new token pair after an external login and
// persists it. Requests issued after this call use the new session.
func (c *Client) SetTokens(pair types.TokenPair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.tokens.Save(pair); err != nil {
		return fmt.Errorf("failed to persist session tokens: %w", err)
	}
	c.pair = pair
	c.gen++
	return nil
}

func (c *Client) invalidateSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidateSessionLocked()
}

func (c *Client) invalidateSessionLocked() error {
	c.pair = types.TokenPair{}
	c.gen++
	if err := c.tokens.Clear(); err != nil {
		log.Errorf("Failed to clear session tokens", err)
	}
	metrics.SessionInvalidTotal.Inc()
	if c.sessionSink != nil {
		c.sessionSink()
	}
	return types.ErrSessionInvalid
}
