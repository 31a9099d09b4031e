package logging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Credential lifecycle events
	TokenRefreshed     AuditEventType = "TOKEN_REFRESHED"
	TokenRefreshFailed AuditEventType = "TOKEN_REFRESH_FAILED"
	TokenRefreshNoop   AuditEventType = "TOKEN_REFRESH_NOOP"
	CredentialImported AuditEventType = "CREDENTIAL_IMPORTED"
	CredentialMissing  AuditEventType = "CREDENTIAL_MISSING"
	// Warehouse events
	SchemaMigrated AuditEventType = "SCHEMA_MIGRATED"
)

// AuditSeverity represents the severity level of an audit event
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailure AuditStatus = "failure"
)

// AuditEvent records a change to stored credentials or warehouse schema.
// Secrets never go into Details.
type AuditEvent struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    AuditEventType         `json:"event_type"`
	Severity     AuditSeverity          `json:"severity"`
	Service      string                 `json:"service"`
	Action       string                 `json:"action"`
	Status       AuditStatus            `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewAuditEvent creates a new audit event with a generated ID and timestamp
func NewAuditEvent(eventType AuditEventType, service string, action string) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  SeverityInfo,
		Service:   service,
		Action:    action,
		Status:    StatusSuccess,
	}
}

// WithSeverity sets the severity for the audit event
func (e *AuditEvent) WithSeverity(severity AuditSeverity) *AuditEvent {
	e.Severity = severity
	return e
}

// WithDetail adds one key to the details map
func (e *AuditEvent) WithDetail(key string, value interface{}) *AuditEvent {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithError marks the event failed
func (e *AuditEvent) WithError(err error) *AuditEvent {
	if err == nil {
		return e
	}
	e.ErrorMessage = err.Error()
	e.Status = StatusFailure
	if e.Severity == "" || e.Severity == SeverityInfo {
		e.Severity = SeverityError
	}
	return e
}

// ToJSON converts the audit event to a JSON string
func (e *AuditEvent) ToJSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal audit event: %v"}`, err)
	}
	return string(data)
}

// ParseAuditEvent parses a JSON string into an AuditEvent
func ParseAuditEvent(data string) (*AuditEvent, error) {
	var event AuditEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to parse audit event: %w", err)
	}
	return &event, nil
}

// Audit writes the event through the logger at a level matching its severity.
func (l *Logger) Audit(e *AuditEvent) {
	fields := []interface{}{
		"audit_id", e.ID,
		"event_type", string(e.EventType),
		"service", e.Service,
		"action", e.Action,
		"status", string(e.Status),
	}
	for k, v := range e.Details {
		fields = append(fields, k, v)
	}
	if e.ErrorMessage != "" {
		fields = append(fields, "error", e.ErrorMessage)
	}

	switch e.Severity {
	case SeverityWarning:
		l.Warn("audit", fields...)
	case SeverityError, SeverityCritical:
		l.Error("audit", fields...)
	default:
		l.Info("audit", fields...)
	}
}
