package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigErrors(t *testing.T) {
	notFound := &ErrConfigNotFound{Path: "/tmp/config.yaml"}
	if !strings.Contains(notFound.Error(), "config file not found") {
		t.Fatalf("unexpected error message: %s", notFound.Error())
	}
	if !strings.Contains(notFound.Error(), notFound.Path) {
		t.Fatalf("expected path in error message: %s", notFound.Error())
	}

	base := errors.New("bad yaml")
	parse := &ErrConfigParse{Err: base}
	if !strings.Contains(parse.Error(), "failed to parse YAML") {
		t.Fatalf("unexpected parse message: %s", parse.Error())
	}
	if !errors.Is(parse, base) {
		t.Fatalf("expected unwrap to base error")
	}

	validation := &ErrConfigValidation{Err: base}
	if !strings.Contains(validation.Error(), "config validation failed") {
		t.Fatalf("unexpected validation message: %s", validation.Error())
	}
	if !errors.Is(validation, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestDatabaseErrors(t *testing.T) {
	base := errors.New("db")

	op := &ErrDatabaseOpen{Path: "/tmp/db.sqlite", Err: base}
	if !strings.Contains(op.Error(), "failed to open database") {
		t.Fatalf("unexpected open message: %s", op.Error())
	}
	if !errors.Is(op, base) {
		t.Fatalf("expected unwrap to base error")
	}

	migration := &ErrDatabaseMigration{Version: 2, Err: base}
	if !strings.Contains(migration.Error(), "database migration 2 failed") {
		t.Fatalf("unexpected migration message: %s", migration.Error())
	}
	if !errors.Is(migration, base) {
		t.Fatalf("expected unwrap to base error")
	}

	query := &ErrDatabaseQuery{Operation: "select", Err: base}
	if !strings.Contains(query.Error(), "database query failed") {
		t.Fatalf("unexpected query message: %s", query.Error())
	}
	if !errors.Is(query, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestFilesystemErrors(t *testing.T) {
	base := errors.New("boom")

	mkdir := &ErrDirectoryCreate{Path: "/tmp/dir", Err: base}
	if !strings.Contains(mkdir.Error(), "failed to create directory") {
		t.Fatalf("unexpected mkdir message: %s", mkdir.Error())
	}
	if !errors.Is(mkdir, base) {
		t.Fatalf("expected unwrap to base error")
	}

	read := &ErrFileRead{Path: "/tmp/file", Err: base}
	if !strings.Contains(read.Error(), "failed to read file") {
		t.Fatalf("unexpected read message: %s", read.Error())
	}
	if !errors.Is(read, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestCredentialErrors(t *testing.T) {
	notFound := &ErrCredentialsNotFound{Service: "fitbit", Table: "oauth2_credentials"}
	if notFound.Error() != "fitbit credentials not found in oauth2_credentials" {
		t.Fatalf("unexpected message: %s", notFound.Error())
	}

	refresh := &ErrTokenRefreshFailed{Service: "fitbit", Body: `{"errors":[]}`}
	if !strings.Contains(refresh.Error(), `{"errors":[]}`) {
		t.Fatalf("expected raw body in message: %s", refresh.Error())
	}

	base := errors.New("HTTP 400")
	wrapped := &ErrTokenRefreshFailed{Service: "tanita_health_planet", Err: base}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestHTTPError(t *testing.T) {
	body := []byte(strings.Repeat("x", 800))
	err := NewHTTPError(503, body, "https://example.test")
	if len(err.Body) != MaxBodyExcerpt {
		t.Fatalf("expected body truncated to %d, got %d", MaxBodyExcerpt, len(err.Body))
	}
	if !strings.HasPrefix(err.Error(), "HTTP 503: ") {
		t.Fatalf("unexpected message: %s", err.Error())
	}

	wrapped := fmt.Errorf("fetch sleep: %w", NewHTTPError(404, nil, ""))
	if !IsNotFound(wrapped) {
		t.Fatalf("expected wrapped 404 to be detected")
	}
	if IsUnauthorized(wrapped) {
		t.Fatalf("404 is not 401")
	}
	if IsNotFound(errors.New("404")) {
		t.Fatalf("plain errors never match a status")
	}
}

func TestPartialUpsertError(t *testing.T) {
	base := errors.New("connection reset")
	err := &PartialUpsertError{Table: "raw_zaim__money", Committed: 200, Total: 250, Err: base}
	if !strings.Contains(err.Error(), "after 200 of 250 records") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestEntitySyncError(t *testing.T) {
	base := &ErrCredentialsNotFound{Service: "zaim"}
	err := &ErrEntitySync{Provider: "zaim", Entity: "money", Err: base}
	if !strings.HasPrefix(err.Error(), "sync zaim/money: ") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	var target *ErrCredentialsNotFound
	if !errors.As(err, &target) {
		t.Fatalf("expected errors.As to reach the cause")
	}

	if (&ErrUnknownProvider{Name: "strava"}).Error() != "unknown provider: strava" {
		t.Fatalf("unexpected unknown provider message")
	}
}
