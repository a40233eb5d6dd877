package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drallgood/ebook-reader/internal/logger"
	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/util"
)

// DefaultBaseURL is the production API root
const DefaultBaseURL = "https://api.volcanion-ebook.com/v1"

// Requester performs a single JSON request against the API.
// Domain clients depend on this rather than on *Client so they can be tested
// against a fake.
type Requester interface {
	Do(ctx context.Context, method, endpoint string, body interface{}, authRequired bool, out interface{}) error
}

// TokenSource supplies the bearer token for authenticated requests
type TokenSource interface {
	AccessToken() string
}

// TokenSourceFunc adapts a function to TokenSource
type TokenSourceFunc func() string

// AccessToken implements TokenSource
func (f TokenSourceFunc) AccessToken() string { return f() }

type accessTokenKey struct{}

// WithAccessToken returns a context whose requests authenticate with token
// instead of the client's TokenSource.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the token set by WithAccessToken
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(string)
	return token, ok
}

// Client is the shared HTTP client used by every resource domain
type Client struct {
	baseURL string
	client  *http.Client
	limiter *util.RateLimiter
	logger  *logger.Logger
	tokens  TokenSource
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithRateLimiter throttles outgoing requests. A nil limiter disables throttling.
func WithRateLimiter(rl *util.RateLimiter) Option {
	return func(c *Client) {
		c.limiter = rl
	}
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// NewClient creates a client rooted at baseURL (DefaultBaseURL when empty)
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Component("api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		// No Timeout: callers bound requests with their context.
		c.client = &http.Client{Transport: logger.NewTransport(nil, c.logger)}
	}
	return c
}

// BaseURL returns the API root requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource replaces the token source after construction. The session
// container is built on top of the client, so it registers itself here.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

func (c *Client) bearer(ctx context.Context) string {
	if token, ok := AccessTokenFromContext(ctx); ok {
		return token
	}
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

// Do sends a JSON request and decodes a successful response into out.
// Non-2xx responses yield *RequestFailure, transport errors *NetworkFailure.
func (c *Client) Do(ctx context.Context, method, endpoint string, body interface{}, authRequired bool, out interface{}) error {
	url := c.baseURL + endpoint
	requestID := uuid.NewString()
	log := c.logger.WithFields(map[string]interface{}{
		"method":     method,
		"endpoint":   endpoint,
		"request_id": requestID,
	})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkFailure{Method: method, URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(logger.NewContext(ctx, log), method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(logger.RequestIDHeader, requestID)

	if authRequired {
		if token := c.bearer(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		} else {
			log.Debug("No access token available for authenticated request")
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkFailure{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkFailure{Method: method, URL: url, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests && c.limiter != nil {
			delay := c.limiter.OnRateLimit(retryAfter(resp.Header.Get("Retry-After")))
			log.Debug("Holding requests after rate limit", map[string]interface{}{
				"delay": delay.String(),
			})
		}
		failure := &RequestFailure{StatusCode: resp.StatusCode}
		var envelope models.ErrorEnvelope
		if json.Unmarshal(data, &envelope) == nil {
			failure.Message = envelope.Message
			failure.Code = envelope.Code
		}
		log.Debug("Request rejected", map[string]interface{}{
			"status":  resp.StatusCode,
			"message": failure.Error(),
		})
		return failure
	}

	if c.limiter != nil {
		c.limiter.OnSuccess()
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, endpoint, err)
	}
	return nil
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
