package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lifedata/connector/internal/backoff"
	"github.com/lifedata/connector/internal/clock"
	"github.com/lifedata/connector/internal/httpclient"
)

// Route answers one request. Returning status 0 means 200.
type Route func(r *http.Request) (status int, body string)

// API is an httptest server dispatching on the request path and recording
// every request it receives.
type API struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Route
	requests []*http.Request
	bodies   []string
}

// NewAPI starts a server. Unknown paths return 404.
func NewAPI(t *testing.T) *API {
	t.Helper()
	a := &API{routes: make(map[string]Route)}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.Close)
	return a
}

// Handle registers route for path.
func (a *API) Handle(path string, route Route) {
	a.mu.Lock()
	a.routes[path] = route
	a.mu.Unlock()
}

// JSON registers a fixed 200 response for path.
func (a *API) JSON(path, body string) {
	a.Handle(path, func(*http.Request) (int, string) { return http.StatusOK, body })
}

// Requests returns the recorded requests in arrival order.
func (a *API) Requests() []*http.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*http.Request(nil), a.requests...)
}

// Bodies returns the recorded request bodies in arrival order.
func (a *API) Bodies() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.bodies...)
}

// Paths returns path?query of every recorded request.
func (a *API) Paths() []string {
	var out []string
	for _, r := range a.Requests() {
		p := r.URL.Path
		if r.URL.RawQuery != "" {
			p += "?" + r.URL.RawQuery
		}
		out = append(out, p)
	}
	return out
}

func (a *API) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	a.mu.Lock()
	a.requests = append(a.requests, r)
	a.bodies = append(a.bodies, string(body))
	route, ok := a.routes[r.URL.Path]
	a.mu.Unlock()

	if !ok {
		http.Error(w, `{"errors":[{"errorType":"not_found"}]}`, http.StatusNotFound)
		return
	}
	status, payload := route(r)
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, payload)
}

// HTTPClient returns a resilient client whose waits go to a fake clock.
func HTTPClient() (*httpclient.Client, *clock.Fake) {
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	return httpclient.New(httpclient.WithSleeper(fake), httpclient.WithPolicy(backoff.Zero{})), fake
}
