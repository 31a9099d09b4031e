package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lifedata/connector/internal/backoff"
	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/credentials"
	"github.com/lifedata/connector/internal/httpclient"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/metrics"
	"github.com/lifedata/connector/internal/provider"
	"github.com/lifedata/connector/internal/provider/fitbit"
	"github.com/lifedata/connector/internal/provider/tanita"
	"github.com/lifedata/connector/internal/provider/toggl"
	"github.com/lifedata/connector/internal/provider/zaim"
	"github.com/lifedata/connector/internal/sink"
	"github.com/lifedata/connector/internal/syncer"
	"github.com/lifedata/connector/internal/warehouse"
	"github.com/spf13/cobra"
)

// app holds everything one command invocation needs.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	http    *httpclient.Client
	exec    warehouse.Executor
	store   *credentials.Store
	syncer  *syncer.Syncer
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var loader *config.Loader
	if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
		loader = config.NewLoader(globalFlags.Config)
	} else {
		loader = config.NewDefaultLoader()
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if globalFlags.DBPath != "" {
		cfg.Warehouse.Driver = config.DriverSQLite
		cfg.Warehouse.SQLitePath = globalFlags.DBPath
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(
		logging.WithOutput(cmd.ErrOrStderr()),
		logging.WithLevel(level),
		logging.WithService(cfg.Log.Service),
	), nil
}

func newHTTPClient(cfg config.HTTPConfig, m *metrics.Metrics, logger *logging.Logger) *httpclient.Client {
	return httpclient.New(
		httpclient.WithDoer(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: httpclient.NewTransport(cfg.UseUTLS),
		}),
		httpclient.WithPolicy(backoff.FromConfig(cfg.Backoff)),
		httpclient.WithDefaultRetryAfter(cfg.DefaultRetryAfter),
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithMetrics(m),
		httpclient.WithLogger(logger),
	)
}

// newApp loads config and opens the warehouse. Call close when done.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics("connector")
	client := newHTTPClient(cfg.HTTP, m, logger)

	exec, err := warehouse.Open(cmd.Context(), cfg.Warehouse, client)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}

	store := credentials.NewStore(
		credentials.NewRepository(exec),
		client,
		credentials.Profiles(cfg),
		credentials.WithStoreMetrics(m),
		credentials.WithStoreLogger(logger),
	)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		http:    client,
		exec:    exec,
		store:   store,
	}
	a.syncer = syncer.New(
		sink.New(exec, sink.WithMetrics(m), sink.WithLogger(logger)),
		a.providers(),
		syncer.WithMetrics(m),
		syncer.WithLogger(logger),
		syncer.WithDisabled(a.disabled()...),
	)
	return a, nil
}

// providers returns the registry in the fixed run order.
func (a *app) providers() []provider.Provider {
	p := a.cfg.Providers
	apiOpts := []provider.APIOption{
		provider.WithAPIMetrics(a.metrics),
		provider.WithAPILogger(a.logger),
	}
	return []provider.Provider{
		toggl.New(p.Toggl, a.http, a.store, nil, apiOpts...),
		fitbit.New(p.Fitbit, a.http, a.store, apiOpts...),
		tanita.New(p.Tanita, a.http, a.store, apiOpts...),
		zaim.New(p.Zaim, a.http, a.store, nil, apiOpts...),
	}
}

func (a *app) disabled() []string {
	p := a.cfg.Providers
	var out []string
	for name, enabled := range map[string]bool{
		toggl.Name:  p.Toggl.Enabled,
		fitbit.Name: p.Fitbit.Enabled,
		tanita.Name: p.Tanita.Enabled,
		zaim.Name:   p.Zaim.Enabled,
	} {
		if !enabled {
			out = append(out, name)
		}
	}
	return out
}

// finish exports run metrics and closes the warehouse. Export failures are
// logged and do not change the command's outcome.
func (a *app) finish(ctx context.Context) {
	exporter := metrics.Exporter{
		TextfilePath:   a.cfg.Metrics.TextfilePath,
		PushgatewayURL: a.cfg.Metrics.PushgatewayURL,
		Job:            a.cfg.Metrics.Job,
	}
	if err := exporter.Export(ctx, a.metrics); err != nil {
		a.logger.WarnWithContext(ctx, "metrics export failed", "error", err)
	}
	if err := a.exec.Close(); err != nil {
		a.logger.WarnWithContext(ctx, "warehouse close failed", "error", err)
	}
}
