package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Credential errors

// ErrCredentialsNotFound means no credential row exists for a service.
// It is a configuration problem and is never retried.
type ErrCredentialsNotFound struct {
	Service string
	Table   string
}

func (e *ErrCredentialsNotFound) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s credentials not found in %s", e.Service, e.Table)
	}
	return fmt.Sprintf("%s credentials not found", e.Service)
}

// ErrTokenRefreshFailed carries the raw token endpoint body for diagnostics.
type ErrTokenRefreshFailed struct {
	Service string
	Body    string
	Err     error
}

func (e *ErrTokenRefreshFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s token refresh failed: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s token refresh failed: %s", e.Service, e.Body)
}

func (e *ErrTokenRefreshFailed) Unwrap() error {
	return e.Err
}

// HTTP errors

// MaxBodyExcerpt bounds the response body kept on an HTTPError.
const MaxBodyExcerpt = 500

// HTTPError is returned for any final non-success status.
type HTTPError struct {
	Code int
	Body string
	URL  string
}

// NewHTTPError builds an HTTPError truncating the body to MaxBodyExcerpt bytes.
func NewHTTPError(code int, body []byte, url string) *HTTPError {
	if len(body) > MaxBodyExcerpt {
		body = body[:MaxBodyExcerpt]
	}
	return &HTTPError{Code: code, Body: string(body), URL: url}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err wraps an HTTPError with the given code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an HTTP 401.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// Sink errors

// PartialUpsertError reports a multi-batch upsert that failed after some
// batches were already committed.
type PartialUpsertError struct {
	Table     string
	Committed int
	Total     int
	Err       error
}

func (e *PartialUpsertError) Error() string {
	return fmt.Sprintf("upsert into %s failed after %d of %d records: %v", e.Table, e.Committed, e.Total, e.Err)
}

func (e *PartialUpsertError) Unwrap() error {
	return e.Err
}

// Orchestrator errors

type ErrUnknownProvider struct {
	Name string
}

func (e *ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Name)
}

type ErrUnknownEntity struct {
	Provider string
	Name     string
}

func (e *ErrUnknownEntity) Error() string {
	return fmt.Sprintf("unknown entity %q for provider %s", e.Name, e.Provider)
}

// ErrEntitySync names the step that was running when a sync failed.
type ErrEntitySync struct {
	Provider string
	Entity   string
	Err      error
}

func (e *ErrEntitySync) Error() string {
	return fmt.Sprintf("sync %s/%s: %v", e.Provider, e.Entity, e.Err)
}

func (e *ErrEntitySync) Unwrap() error {
	return e.Err
}
