package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RunIDKey is the context key for the run ID
	RunIDKey contextKey = "run_id"
)

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context
// Returns empty string if not set
func GetRunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// NewRunID generates the identifier shared by every log line of one
// invocation.
func NewRunID() string {
	return uuid.New().String()
}

// WithRun attaches a fresh run ID unless ctx already carries one.
func WithRun(ctx context.Context) (context.Context, string) {
	if id := GetRunID(ctx); id != "" {
		return ctx, id
	}
	id := NewRunID()
	return WithRunID(ctx, id), id
}
