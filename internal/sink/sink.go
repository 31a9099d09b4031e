// Package sink writes raw records into warehouse landing tables with
// idempotent upserts keyed on source_id.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/metrics"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/warehouse"
)

// BatchSize is the number of records per INSERT statement.
const BatchSize = 100

// Sink upserts records through a warehouse executor.
type Sink struct {
	exec      warehouse.Executor
	batchSize int
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// Option configures a Sink
type Option func(*Sink)

// WithBatchSize overrides BatchSize.
func WithBatchSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMetrics records upserted counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sink) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New creates a Sink.
func New(exec warehouse.Executor, opts ...Option) *Sink {
	s := &Sink{exec: exec, batchSize: BatchSize, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert writes records to table in batches. Each batch is one statement and
// commits on its own. When a batch fails the returned result counts the
// records already committed and the error is a *errors.PartialUpsertError.
// Empty input issues no statement.
func (s *Sink) Upsert(ctx context.Context, table string, records []models.RawRecord, version string) (models.UpsertResult, error) {
	result := models.UpsertResult{Table: table}
	if len(records) == 0 {
		return result, nil
	}
	if !warehouse.ValidIdent(table) {
		return result, fmt.Errorf("invalid table name %q", table)
	}

	dialect := s.exec.Dialect()
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		query, params, err := buildUpsert(dialect, table, records[start:end], version)
		if err == nil {
			_, err = s.exec.Exec(ctx, query, params...)
		}
		if err != nil {
			s.metrics.RecordUpserted(table, result.Count)
			return result, &errors.PartialUpsertError{
				Table:     table,
				Committed: result.Count,
				Total:     len(records),
				Err:       err,
			}
		}
		result.Count += end - start
	}

	s.metrics.RecordUpserted(table, result.Count)
	s.logger.InfoWithContext(ctx, "upserted records", "table", table, "count", result.Count)
	return result, nil
}

func buildUpsert(d warehouse.Dialect, table string, batch []models.RawRecord, version string) (string, []any, error) {
	values := make([]string, 0, len(batch))
	params := make([]any, 0, len(batch)*3)

	for i, r := range batch {
		data, err := json.Marshal(r.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("encode record %s: %w", r.SourceID, err)
		}
		n := i*3 + 1
		values = append(values, fmt.Sprintf("(%s, %s, %s, %s)",
			d.Placeholder(n), d.JSON(d.Placeholder(n+1)), d.Now(), d.Placeholder(n+2)))
		params = append(params, r.SourceID, string(data), version)
	}

	query := "INSERT INTO " + d.Table(table) + " (source_id, data, synced_at, api_version)\n" +
		"VALUES " + strings.Join(values, ", ") + "\n" +
		"ON CONFLICT (source_id) DO UPDATE SET\n" +
		"  data = EXCLUDED.data,\n" +
		"  synced_at = EXCLUDED.synced_at,\n" +
		"  api_version = EXCLUDED.api_version"
	return query, params, nil
}
