package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lifedata/connector/internal/errors"
	_ "modernc.org/sqlite"
)

// SQLite is a local warehouse in a single file with WAL mode. It mirrors
// the Postgres schema with flat table names and is used for development
// and tests.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// pending migrations.
func OpenSQLite(dbPath string) (*SQLite, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func credentialTableSQL(name string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			service_name TEXT PRIMARY KEY,
			client_id TEXT NOT NULL DEFAULT '',
			client_secret TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			token_type TEXT NOT NULL DEFAULT '',
			scope TEXT NOT NULL DEFAULT '',
			expires_at TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		);`, name)
}

func rawTablesSQL() string {
	var b strings.Builder
	for _, t := range RawTables {
		fmt.Fprintf(&b, `
		CREATE TABLE IF NOT EXISTS %s (
			source_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			synced_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			api_version TEXT NOT NULL DEFAULT ''
		);`, t)
	}
	return b.String()
}

// runSQLiteMigrations runs database migrations
func runSQLiteMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up:      credentialTableSQL(OAuth2CredentialsTable) + credentialTableSQL(CredentialsTable),
		},
		{
			version: 2,
			up:      rawTablesSQL(),
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}
	return v, nil
}

// Exec runs query. Statements that return rows go through QueryContext,
// everything else through ExecContext.
func (s *SQLite) Exec(ctx context.Context, query string, params ...any) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !returnsRows(query) {
		if _, err := s.db.ExecContext(ctx, query, params...); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "exec", Err: err}
		}
		return &Result{}, nil
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "columns", Err: err}
	}
	result := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan", Err: err}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "query", Err: err}
	}
	return result, nil
}

func returnsRows(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH") ||
		strings.HasPrefix(q, "PRAGMA") || strings.Contains(q, "RETURNING")
}

func (s *SQLite) Dialect() Dialect { return SQLiteDialect() }

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
