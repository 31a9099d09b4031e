// Package syncer runs entity jobs: it walks each entity's date range, dedups
// the fetched records by source id and upserts them into the warehouse.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/lifedata/connector/internal/clock"
	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/metrics"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/provider"
)

// Upserter writes raw records. *sink.Sink satisfies it.
type Upserter interface {
	Upsert(ctx context.Context, table string, records []models.RawRecord, version string) (models.UpsertResult, error)
}

// Syncer owns the ordered provider registry for one run.
type Syncer struct {
	providers []provider.Provider
	disabled  map[string]bool
	sink      Upserter
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

func WithClock(c clock.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithDisabled marks providers that schedules skip.
func WithDisabled(names ...string) Option {
	return func(s *Syncer) {
		for _, n := range names {
			s.disabled[n] = true
		}
	}
}

// New creates a Syncer. Providers run in the order given.
func New(sink Upserter, providers []provider.Provider, opts ...Option) *Syncer {
	s := &Syncer{
		providers: providers,
		disabled:  make(map[string]bool),
		sink:      sink,
		clock:     clock.Real{},
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers returns the registry in run order.
func (s *Syncer) Providers() []provider.Provider {
	return s.providers
}

// Enabled reports whether schedules run the provider.
func (s *Syncer) Enabled(name string) bool {
	return !s.disabled[name]
}

// Provider looks up a registered provider.
func (s *Syncer) Provider(name string) (provider.Provider, error) {
	for _, p := range s.providers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, &apperrors.ErrUnknownProvider{Name: name}
}

// Entities returns the named entities of a provider in registry order, or
// all of them when names is empty.
func (s *Syncer) Entities(providerName string, names ...string) ([]provider.Entity, error) {
	p, err := s.Provider(providerName)
	if err != nil {
		return nil, err
	}
	all := p.Entities()
	if len(names) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		found := false
		for _, e := range all {
			if e.Name == n {
				found = true
				break
			}
		}
		if !found {
			return nil, &apperrors.ErrUnknownEntity{Provider: providerName, Name: n}
		}
		want[n] = true
	}

	out := make([]provider.Entity, 0, len(names))
	for _, e := range all {
		if want[e.Name] {
			out = append(out, e)
		}
	}
	return out, nil
}

// Job is one entity over one window.
type Job struct {
	Entity provider.Entity
	Window fetch.Window
}

// Run executes jobs in order. The first failure stops the run; the results
// of the jobs that completed are returned with it.
func (s *Syncer) Run(ctx context.Context, jobs []Job) ([]models.EntityResult, error) {
	results := make([]models.EntityResult, 0, len(jobs))
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.SyncEntity(ctx, j.Entity, j.Window)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// SyncProvider syncs the chosen entities of one provider over w.
func (s *Syncer) SyncProvider(ctx context.Context, name string, w fetch.Window, entities ...string) ([]models.EntityResult, error) {
	if !s.Enabled(name) {
		return nil, fmt.Errorf("provider %s is disabled in config", name)
	}
	list, err := s.Entities(name, entities...)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(list))
	for _, e := range list {
		jobs = append(jobs, Job{Entity: e, Window: w})
	}
	return s.Run(ctx, jobs)
}

// SyncEntity fetches, dedups and upserts one entity.
func (s *Syncer) SyncEntity(ctx context.Context, e provider.Entity, w fetch.Window) (models.EntityResult, error) {
	started := s.clock.Now()
	res := models.EntityResult{Provider: e.Provider, Entity: e.Name, Table: e.Table}
	logger := s.logger.With("provider", e.Provider, "entity", e.Name, "table", e.Table)

	logger.InfoWithContext(ctx, "entity sync started",
		"start", w.Start.UTC().Format(time.DateOnly),
		"end", w.Last().UTC().Format(time.DateOnly),
		"chunking", e.Chunking(),
	)

	err := s.syncEntity(ctx, e, w, &res)
	finished := s.clock.Now()
	res.Duration = finished.Sub(started)
	s.metrics.RecordEntitySync(e.Provider, e.Name, err, res.Duration, finished)

	if err != nil {
		logger.ErrorWithContext(ctx, "entity sync failed",
			"error", err,
			"fetched", res.Fetched,
			"upserted", res.Upserted,
		)
		return res, &apperrors.ErrEntitySync{Provider: e.Provider, Entity: e.Name, Err: err}
	}

	logger.InfoWithContext(ctx, "entity sync finished",
		"fetched", res.Fetched,
		"unique", res.Unique,
		"upserted", res.Upserted,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (s *Syncer) syncEntity(ctx context.Context, e provider.Entity, w fetch.Window, res *models.EntityResult) error {
	if e.Fetch == nil {
		return fmt.Errorf("entity %s/%s has no fetch function", e.Provider, e.Name)
	}
	if e.Mode != provider.ModeRange || e.ChunkDays <= 0 {
		records, err := e.Fetch(ctx, w)
		if err != nil {
			return err
		}
		return s.write(ctx, e, records, res)
	}

	if e.UpsertPerChunk {
		for _, chunk := range fetch.Windows(w.Start, w.End, e.ChunkDays) {
			records, err := e.Fetch(ctx, chunk)
			if err != nil {
				return err
			}
			if err := s.write(ctx, e, records, res); err != nil {
				return err
			}
		}
		return nil
	}

	records, err := fetch.FetchRange(ctx, w.Start, w.End, e.ChunkDays, e.Fetch)
	if err != nil {
		return err
	}
	return s.write(ctx, e, records, res)
}

func (s *Syncer) write(ctx context.Context, e provider.Entity, records []models.RawRecord, res *models.EntityResult) error {
	res.Fetched += len(records)
	s.metrics.RecordFetched(e.Table, len(records))

	unique := Dedup(records)
	res.Unique += len(unique)

	out, err := s.sink.Upsert(ctx, e.Table, unique, e.Version)
	res.Upserted += out.Count
	return err
}

// Dedup drops records whose source id was already seen. The first
// occurrence wins and order is kept.
func Dedup(records []models.RawRecord) []models.RawRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.RawRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.SourceID]; ok {
			continue
		}
		seen[r.SourceID] = struct{}{}
		out = append(out, r)
	}
	return out
}
