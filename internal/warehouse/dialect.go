package warehouse

import (
	"fmt"
	"time"
)

// Dialect renders the few SQL fragments that differ between backends.
type Dialect interface {
	Name() string
	// Placeholder returns the marker for the n-th (1-based) parameter.
	Placeholder(n int) string
	// JSON wraps a placeholder so the parameter is stored as a JSON document.
	JSON(placeholder string) string
	// Now is the server-side current timestamp expression.
	Now() string
	// Table qualifies a table name.
	Table(name string) string
	// Time converts a timestamp parameter into the form the backend stores.
	Time(t time.Time) any
}

type postgresDialect struct {
	schema string
}

// PostgresDialect qualifies tables with schema.
func PostgresDialect(schema string) Dialect {
	return postgresDialect{schema: schema}
}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) JSON(placeholder string) string { return placeholder + "::jsonb" }

func (postgresDialect) Now() string { return "now()" }

func (d postgresDialect) Table(name string) string {
	if d.schema == "" {
		return name
	}
	return d.schema + "." + name
}

func (postgresDialect) Time(t time.Time) any { return t.UTC() }

type sqliteDialect struct{}

// SQLiteDialect uses numbered ? markers and flat table names.
func SQLiteDialect() Dialect {
	return sqliteDialect{}
}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholder(n int) string { return fmt.Sprintf("?%d", n) }

func (sqliteDialect) JSON(placeholder string) string { return "json(" + placeholder + ")" }

func (sqliteDialect) Now() string { return "CURRENT_TIMESTAMP" }

func (sqliteDialect) Table(name string) string { return name }

func (sqliteDialect) Time(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) }
