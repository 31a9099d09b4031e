// Package warehouse runs parameterized statements against the data
// warehouse. Three executors share one interface: Postgres over pgx, Neon's
// SQL-over-HTTP endpoint, and a local SQLite file.
package warehouse

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/httpclient"
)

// Result holds the rows returned by a statement. Statements without a
// result set return an empty Result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Executor executes one parameterized statement.
type Executor interface {
	Exec(ctx context.Context, query string, params ...any) (*Result, error)
	Dialect() Dialect
	Close() error
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdent reports whether s can be used unquoted as a schema or table name.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// Open builds the executor selected by cfg.Driver. client carries Neon
// requests and may be nil for the other drivers.
func Open(ctx context.Context, cfg config.WarehouseConfig, client *httpclient.Client) (Executor, error) {
	if cfg.Driver != config.DriverSQLite && !ValidIdent(cfg.Schema) {
		return nil, fmt.Errorf("invalid warehouse schema %q", cfg.Schema)
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg)
	case config.DriverNeon:
		if client == nil {
			client = httpclient.New()
		}
		return NewNeon(cfg.URL, cfg.Schema, client.ForProvider("neon"))
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
}
