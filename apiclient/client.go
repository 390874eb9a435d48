package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jonwraymond/toolcache/apicache"
	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/observe"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// Config configures a Client. Zero values select the defaults.
type Config struct {
	// BaseURL is the API root. Default: EnvBaseURL, then DefaultBaseURL.
	BaseURL string

	// Timeout bounds a single HTTP attempt. Default: 30s
	Timeout time.Duration

	// RetryAttempts is the number of attempts for reads, including the first. Default: 3
	RetryAttempts int

	// RetryDelay is the delay before the first retry. Default: 100ms
	RetryDelay time.Duration

	// BreakerFailures is the number of consecutive failures that opens the breaker. Default: 5
	BreakerFailures int

	// BreakerReset is how long the breaker stays open. Default: 30s
	BreakerReset time.Duration

	// RateLimit is the sustained requests per second. Zero disables limiting.
	RateLimit float64

	// RateBurst is the token bucket size. Default: 1
	RateBurst int
}

// ResolveBaseURL returns configured if set, else the EnvBaseURL value, else DefaultBaseURL.
func ResolveBaseURL(configured string) string {
	if configured != "" {
		return configured
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		return v
	}
	return DefaultBaseURL
}

// Client issues requests against the tool API.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	retry   *retryPolicy
	breaker *breaker
	limiter *limiter
	cache   *apicache.Client
	keyer   cache.Keyer
	logger  observe.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithCache routes endpoint reads through ac.
func WithCache(ac *apicache.Client) Option {
	return func(c *Client) { c.cache = ac }
}

// WithKeyer replaces the cache key derivation.
func WithKeyer(k cache.Keyer) Option {
	return func(c *Client) {
		if k != nil {
			c.keyer = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := ResolveBaseURL(cfg.BaseURL)
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	c := &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
		retry:   newRetryPolicy(attempts, cfg.RetryDelay),
		breaker: newBreaker(cfg.BreakerFailures, cfg.BreakerReset),
		limiter: newLimiter(cfg.RateLimit, cfg.RateBurst),
		keyer:   cache.NewDefaultKeyer(),
		logger:  observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("apiclient")

	c.retry.onRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn(context.Background(), "retrying request",
			observe.F("attempt", attempt),
			observe.F("delay_ms", delay.Milliseconds()),
			observe.Err(err),
		)
	}
	c.breaker.onChange = func(from, to BreakerState) {
		c.logger.Warn(context.Background(), "circuit breaker state changed",
			observe.F("from", from.String()),
			observe.F("to", to.String()),
		)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() BreakerState { return c.breaker.State() }

// ToolURL returns the absolute URL of a tool endpoint.
func (c *Client) ToolURL(tool string) (string, error) {
	if !IsTool(tool) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	p, _ := Endpoint(tool)
	return URL(c.baseURL, p), nil
}

// GetJSON reads a named endpoint with params as the query string.
// With a cache configured the response is cached under a key derived from
// name and params and tagged "api" and "endpoint:<name>".
func (c *Client) GetJSON(ctx context.Context, name string, params map[string]string, opts ...cache.SetOption) ([]byte, error) {
	path, ok := Endpoint(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}

	fetch := func(ctx context.Context) ([]byte, error) {
		return c.read(ctx, path, params)
	}
	if c.cache == nil {
		return fetch(ctx)
	}

	key, err := c.keyer.Key(name, params)
	if err != nil {
		return nil, err
	}
	return c.cache.GetEndpoint(ctx, name, key, fetch, opts...)
}

// Health reads the health endpoint.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return c.getMap(ctx, EndpointHealth)
}

// Telemetry reads the telemetry endpoint.
func (c *Client) Telemetry(ctx context.Context) (map[string]any, error) {
	return c.getMap(ctx, EndpointTelemetry)
}

func (c *Client) getMap(ctx context.Context, name string) (map[string]any, error) {
	data, err := c.GetJSON(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("apiclient: decode %s response: %w", name, err)
	}
	return out, nil
}

// RunTool posts params as JSON to a tool endpoint and returns the raw response.
// Tool runs are neither cached nor retried.
func (c *Client) RunTool(ctx context.Context, tool string, params any) ([]byte, error) {
	if !IsTool(tool) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	path, _ := Endpoint(tool)

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode params: %w", err)
	}

	var out []byte
	err = c.guard(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.roundTrip(ctx, http.MethodPost, path, nil, body)
		return err
	})
	return out, err
}

func (c *Client) read(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	var out []byte
	err := c.guard(ctx, func(ctx context.Context) error {
		return c.retry.do(ctx, func(ctx context.Context) error {
			var err error
			out, err = c.roundTrip(ctx, http.MethodGet, path, params, nil)
			return err
		})
	})
	return out, err
}

// guard runs op through the circuit breaker. Only failures that indicate an
// unhealthy API count against it.
func (c *Client) guard(ctx context.Context, op func(context.Context) error) error {
	if err := c.breaker.allow(); err != nil {
		return err
	}
	err := op(ctx)
	c.breaker.record(err != nil && retryable(err))
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, params map[string]string, body []byte) ([]byte, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	target := URL(c.baseURL, path)
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "toolcache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("apiclient: read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, data)
	}
	return data, nil
}
