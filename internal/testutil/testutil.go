// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lifedata/connector/internal/warehouse"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SQLite opens a migrated warehouse in a temp dir, closed on cleanup.
func SQLite(t *testing.T) *warehouse.SQLite {
	t.Helper()
	db, err := warehouse.OpenSQLite(filepath.Join(t.TempDir(), "warehouse.db"))
	if err != nil {
		t.Fatalf("open sqlite warehouse: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var (
	pgOnce    sync.Once
	pgConnStr string
	pgErr     error
)

// Postgres returns the connection string of a shared Postgres container.
// The test is skipped in -short mode or when Docker is unavailable.
func Postgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	pgOnce.Do(func() {
		pgConnStr, pgErr = startPostgres()
	})
	if pgErr != nil {
		t.Skipf("postgres container unavailable: %v", pgErr)
	}
	return pgConnStr
}

func startPostgres() (string, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "warehouse",
			"POSTGRES_USER":     "connector",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}

	return fmt.Sprintf("postgres://connector:test_password@%s:%s/warehouse?sslmode=disable",
		host, port.Port()), nil
}
