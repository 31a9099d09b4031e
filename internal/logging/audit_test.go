package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestAuditEventLifecycle(t *testing.T) {
	event := NewAuditEvent(TokenRefreshed, "fitbit", "refresh").
		WithDetail("expires_at", "2026-01-01T08:00:00Z")

	if event.Service != "fitbit" || event.Status != StatusSuccess {
		t.Fatalf("expected service and success status")
	}
	if event.Details["expires_at"] != "2026-01-01T08:00:00Z" {
		t.Fatalf("expected detail to be set")
	}

	event.WithError(errors.New("boom"))
	if event.Status != StatusFailure {
		t.Fatalf("expected status to be failure")
	}
	if event.Severity != SeverityError {
		t.Fatalf("expected severity to escalate, got %s", event.Severity)
	}

	parsed, err := ParseAuditEvent(event.ToJSON())
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed.Action != "refresh" || parsed.ErrorMessage != "boom" {
		t.Fatalf("expected parsed event to match")
	}
}

func TestAuditEventJSONErrors(t *testing.T) {
	event := NewAuditEvent(CredentialImported, "zaim", "import")
	event.Details = map[string]interface{}{"bad": func() {}}
	if !strings.Contains(event.ToJSON(), "failed to marshal audit event") {
		t.Fatalf("expected marshal failure message")
	}

	if _, err := ParseAuditEvent("{invalid json"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoggerAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelDebug))

	logger.Audit(NewAuditEvent(TokenRefreshNoop, "tanita", "refresh").WithSeverity(SeverityWarning))
	entry := decodeLastLog(t, buf.Bytes())
	if entry["level"] != "warn" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
	fields := entry["fields"].(map[string]interface{})
	if fields["event_type"] != string(TokenRefreshNoop) || fields["service"] != "tanita" {
		t.Fatalf("unexpected audit fields: %v", fields)
	}

	logger.Audit(NewAuditEvent(TokenRefreshFailed, "fitbit", "refresh").WithError(errors.New("invalid_grant")))
	entry = decodeLastLog(t, buf.Bytes())
	if entry["level"] != "error" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
}
