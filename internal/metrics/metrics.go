package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for one sync run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// HTTPRequestsTotal counts outbound requests by provider and status class
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRetriesTotal counts in-place retries by provider and reason
	HTTPRetriesTotal *prometheus.CounterVec
	// TokenRefreshesTotal counts OAuth2 refresh attempts by service and outcome
	TokenRefreshesTotal *prometheus.CounterVec
	// RecordsFetchedTotal counts records returned by transforms, before dedup
	RecordsFetchedTotal *prometheus.CounterVec
	// RecordsUpsertedTotal counts rows written to the warehouse
	RecordsUpsertedTotal *prometheus.CounterVec
	// EntitySyncsTotal counts entity sync runs by outcome
	EntitySyncsTotal *prometheus.CounterVec
	// EntitySyncDuration tracks wall time of one entity sync
	EntitySyncDuration *prometheus.HistogramVec
	// LastSuccess holds the unix time of the last successful entity sync
	LastSuccess *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of outbound HTTP requests",
			},
			[]string{"provider", "status"},
		),
		HTTPRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_retries_total",
				Help:      "Total number of retried HTTP requests",
			},
			[]string{"provider", "reason"},
		),
		TokenRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of OAuth2 token refresh attempts",
			},
			[]string{"service", "outcome"},
		),
		RecordsFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_fetched_total",
				Help:      "Total number of records fetched from providers",
			},
			[]string{"table"},
		),
		RecordsUpsertedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_upserted_total",
				Help:      "Total number of records upserted into the warehouse",
			},
			[]string{"table"},
		),
		EntitySyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entity_syncs_total",
				Help:      "Total number of entity sync runs",
			},
			[]string{"provider", "entity", "status"},
		),
		EntitySyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "entity_sync_duration_seconds",
				Help:      "Entity sync duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"provider", "entity"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful entity sync",
			},
			[]string{"provider", "entity"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRetriesTotal,
		m.TokenRefreshesTotal,
		m.RecordsFetchedTotal,
		m.RecordsUpsertedTotal,
		m.EntitySyncsTotal,
		m.EntitySyncDuration,
		m.LastSuccess,
	)

	return m
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// StatusClass maps a status code to "2xx", "4xx" and so on.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// RecordHTTPRequest counts one outbound request
func (m *Metrics) RecordHTTPRequest(provider string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(provider, StatusClass(code)).Inc()
}

// RecordHTTPRetry counts one retry with its reason
func (m *Metrics) RecordHTTPRetry(provider, reason string) {
	if m == nil {
		return
	}
	m.HTTPRetriesTotal.WithLabelValues(provider, reason).Inc()
}

// RecordTokenRefresh counts one refresh attempt
func (m *Metrics) RecordTokenRefresh(service, outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshesTotal.WithLabelValues(service, outcome).Inc()
}

// RecordFetched adds fetched records for a table
func (m *Metrics) RecordFetched(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsFetchedTotal.WithLabelValues(table).Add(float64(n))
}

// RecordUpserted adds upserted records for a table
func (m *Metrics) RecordUpserted(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsUpsertedTotal.WithLabelValues(table).Add(float64(n))
}

// RecordEntitySync records the outcome and duration of an entity sync
func (m *Metrics) RecordEntitySync(provider, entity string, err error, duration time.Duration, at time.Time) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.EntitySyncsTotal.WithLabelValues(provider, entity, status).Inc()
	m.EntitySyncDuration.WithLabelValues(provider, entity).Observe(duration.Seconds())
	if err == nil {
		m.LastSuccess.WithLabelValues(provider, entity).Set(float64(at.Unix()))
	}
}

// Exporter writes gathered metrics at the end of a run.
type Exporter struct {
	TextfilePath   string
	PushgatewayURL string
	Job            string
}

// Export writes a node-exporter textfile and/or pushes to a Pushgateway.
// Both targets are optional.
func (e Exporter) Export(ctx context.Context, m *Metrics) error {
	if m == nil {
		return nil
	}
	if e.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(e.TextfilePath, m.registry); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	if e.PushgatewayURL != "" {
		job := e.Job
		if job == "" {
			job = "connector"
		}
		if err := push.New(e.PushgatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
	}
	return nil
}
