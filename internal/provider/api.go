package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lifedata/connector/internal/credentials"
	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/httpclient"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/metrics"
)

// Authenticator is the part of *credentials.Store provider clients use.
type Authenticator interface {
	AccessAuth(ctx context.Context, service string) (credentials.Auth, error)
	ForceRefresh(ctx context.Context, service string) error
}

// API sends authenticated JSON requests for one service.
type API struct {
	name        string
	service     string
	http        *httpclient.Client
	auth        Authenticator
	refreshable bool
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// APIOption configures an API
type APIOption func(*API)

// WithRefreshOn401 makes a 401 trigger one token refresh and one retry.
func WithRefreshOn401() APIOption {
	return func(a *API) { a.refreshable = true }
}

// WithAPIMetrics records 401 retries.
func WithAPIMetrics(m *metrics.Metrics) APIOption {
	return func(a *API) { a.metrics = m }
}

// WithAPILogger sets the logger.
func WithAPILogger(l *logging.Logger) APIOption {
	return func(a *API) { a.logger = l }
}

// NewAPI creates an API for service. name labels metrics and logs.
func NewAPI(name, service string, client *httpclient.Client, auth Authenticator, opts ...APIOption) *API {
	a := &API{
		name:    name,
		service: service,
		http:    client.ForProvider(name),
		auth:    auth,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("provider", name)
	return a
}

// Get decodes the JSON response of a GET to url into out.
func (a *API) Get(ctx context.Context, url string, out any) error {
	return a.do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON sends body as JSON and decodes the response into out.
func (a *API) PostJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return a.do(ctx, http.MethodPost, url, data, out)
}

func (a *API) do(ctx context.Context, method, url string, body []byte, out any) error {
	err := a.attempt(ctx, method, url, body, out)
	if err == nil || !a.refreshable || !apperrors.IsUnauthorized(err) {
		return err
	}

	a.metrics.RecordHTTPRetry(a.name, "unauthorized")
	a.logger.WarnWithContext(ctx, "access token rejected, refreshing", "service", a.service)
	if err := a.auth.ForceRefresh(ctx, a.service); err != nil {
		return err
	}
	return a.attempt(ctx, method, url, body, out)
}

func (a *API) attempt(ctx context.Context, method, url string, body []byte, out any) error {
	auth, err := a.auth.AccessAuth(ctx, a.service)
	if err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := auth.Apply(req); err != nil {
		return fmt.Errorf("authenticate %s request: %w", a.service, err)
	}
	return a.http.DoJSON(req, out)
}
