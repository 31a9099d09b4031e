// Package httpclient sends provider requests with a fixed recovery policy:
// one retry after a 429 (honouring Retry-After) and one retry after a 5xx.
// Every other status of 400 or above becomes an *errors.HTTPError.
package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lifedata/connector/internal/backoff"
	"github.com/lifedata/connector/internal/clock"
	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/metrics"
	"github.com/lifedata/connector/pkg/headers"
)

// Doer is the part of *http.Client the resilient client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps a Doer with retry handling. It holds no per-call state.
type Client struct {
	doer              Doer
	sleeper           clock.Sleeper
	policy            backoff.Policy
	defaultRetryAfter time.Duration
	userAgent         string
	provider          string
	metrics           *metrics.Metrics
	logger            *logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithDoer replaces the underlying HTTP client.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithSleeper replaces the sleeper used between attempts.
func WithSleeper(s clock.Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithPolicy sets the delay before retrying a 5xx.
func WithPolicy(p backoff.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithDefaultRetryAfter sets the wait used when a 429 has no usable Retry-After.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(c *Client) { c.defaultRetryAfter = d }
}

// WithUserAgent sets the User-Agent applied to requests that lack one.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMetrics records attempts and retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. Without options it uses a 60s timeout, the plain
// transport, real sleeps and a fixed 1s server error delay.
func New(opts ...Option) *Client {
	c := &Client{
		doer: &http.Client{
			Timeout:   60 * time.Second,
			Transport: NewTransport(false),
		},
		sleeper:           clock.Real{},
		policy:            backoff.Fixed{Interval: time.Second},
		defaultRetryAfter: time.Second,
		userAgent:         "connector/1.0",
		provider:          "unknown",
		logger:            logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForProvider returns a copy whose metrics and logs are labelled with name.
func (c *Client) ForProvider(name string) *Client {
	clone := *c
	clone.provider = name
	clone.logger = c.logger.With("provider", name)
	return &clone
}

// Do sends req. On success the caller owns the response body. A 429 or 5xx
// is retried exactly once; the retry's status is final.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	c.applyHeaders(req)
	ctx := req.Context()

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var wait time.Duration
	var reason string
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait = headers.RetryAfter(resp.Header, c.defaultRetryAfter)
		reason = "rate_limit"
		if rl, ok := headers.ParseRateLimit(resp.Header); ok {
			c.logger.WarnWithContext(ctx, "rate limited",
				"url", redactURL(req), "remaining", rl.Remaining, "reset_seconds", int64(rl.Reset.Seconds()))
		}
	case resp.StatusCode >= 500:
		wait = c.policy.Delay(0)
		reason = "server_error"
	default:
		return c.finish(req, resp)
	}

	drain(resp)
	c.metrics.RecordHTTPRetry(c.provider, reason)
	c.logger.WarnWithContext(ctx, "retrying request",
		"url", redactURL(req), "status", resp.StatusCode, "reason", reason, "wait_ms", wait.Milliseconds())

	if err := c.sleeper.Sleep(ctx, wait); err != nil {
		return nil, err
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	resp, err = c.send(retry)
	if err != nil {
		return nil, err
	}
	return c.finish(retry, resp)
}

// DoJSON sends req and decodes a successful body into out.
func (c *Client) DoJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", redactURL(req), err)
	}
	return nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		c.metrics.RecordHTTPRequest(c.provider, 0)
		return nil, fmt.Errorf("%s %s: %w", req.Method, redactURL(req), err)
	}
	c.metrics.RecordHTTPRequest(c.provider, resp.StatusCode)
	return resp, nil
}

func (c *Client) finish(req *http.Request, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, apperrors.MaxBodyExcerpt))
	return nil, apperrors.NewHTTPError(resp.StatusCode, body, redactURL(req))
}

func (c *Client) applyHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
}

// rewind prepares req to be sent again.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("%s %s: request body cannot be replayed", req.Method, redactURL(req))
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// redactURL drops the query string, which may carry access tokens.
func redactURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
