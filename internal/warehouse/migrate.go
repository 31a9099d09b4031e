package warehouse

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lifedata/connector/internal/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigratePostgres applies the embedded migrations to url inside schema. It is
// idempotent; only pending migrations run. Neon URLs work here too since
// they accept regular Postgres connections.
func MigratePostgres(ctx context.Context, url, schema string, logger *logging.Logger) (uint, error) {
	if !ValidIdent(schema) {
		return 0, fmt.Errorf("invalid warehouse schema %q", schema)
	}

	connConfig, err := pgx.ParseConfig(url)
	if err != nil {
		return 0, fmt.Errorf("failed to parse database URL: %w", err)
	}
	connConfig.RuntimeParams["search_path"] = schema

	db := stdlib.OpenDB(*connConfig)
	defer db.Close()

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		return 0, fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{SchemaName: schema})
	if err != nil {
		return 0, fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("failed to close migration source", "error", srcErr)
		}
		if dbErr != nil {
			logger.Warn("failed to close migration database", "error", dbErr)
		}
	}()

	err = m.Up()
	if stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := m.Version()
		logger.Info("no migrations to apply", "version", version)
		return version, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("applied migrations", "version", version, "schema", schema)
	return version, nil
}
