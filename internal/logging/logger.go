package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

var levelOrder = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// ParseLevel converts a config string into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if level == "" {
		return LevelInfo, nil
	}
	if level == "warning" {
		return LevelWarn, nil
	}
	if _, ok := levelOrder[level]; !ok {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Logger provides structured JSON logging tagged with the run ID
type Logger struct {
	mu      *sync.Mutex
	output  io.Writer
	level   LogLevel
	service string
	fields  map[string]interface{}
	exit    func(int)
}

// LoggerOption is a function that configures a Logger
type LoggerOption func(*Logger)

// WithOutput sets the output writer for the logger
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.output = w
	}
}

// WithLevel sets the minimum log level
func WithLevel(level LogLevel) LoggerOption {
	return func(l *Logger) {
		l.level = level
	}
}

// WithService sets the service name for logs
func WithService(service string) LoggerOption {
	return func(l *Logger) {
		l.service = service
	}
}

// NewLogger creates a new Logger with the specified options
func NewLogger(opts ...LoggerOption) *Logger {
	logger := &Logger{
		mu:      &sync.Mutex{},
		output:  os.Stderr,
		level:   LevelInfo,
		service: "connector",
		exit:    os.Exit,
	}

	for _, opt := range opts {
		opt(logger)
	}

	return logger
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewLogger(WithOutput(io.Discard), WithLevel(LevelFatal))
}

// With returns a child logger that adds the given key/value pairs to every
// entry. The child shares the parent's output and lock.
func (l *Logger) With(fields ...interface{}) *Logger {
	_, extra := parseFields(fields)
	merged := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	child := *l
	child.fields = merged
	return &child
}

// logEntry represents a structured log entry
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Service   string                 `json:"service"`
	Message   string                 `json:"message"`
	RunID     string                 `json:"run_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// outputLog writes a log entry to the output
func (l *Logger) outputLog(entry logEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	entry.Service = l.service

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("failed to marshal log entry: %v", err)
		return
	}

	fmt.Fprintln(l.output, string(data))
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return levelOrder[level] >= levelOrder[l.level]
}

func (l *Logger) log(level LogLevel, message string, runID string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	if len(l.fields) > 0 {
		for k, v := range l.fields {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
	}
	if len(fields) == 0 {
		fields = nil
	}

	l.outputLog(logEntry{
		Level:   level,
		Message: message,
		RunID:   runID,
		Fields:  fields,
	})

	if level == LevelFatal {
		l.exit(1)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...interface{}) {
	runID, fieldMap := parseFields(fields)
	l.log(LevelDebug, message, runID, fieldMap)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...interface{}) {
	runID, fieldMap := parseFields(fields)
	l.log(LevelInfo, message, runID, fieldMap)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...interface{}) {
	runID, fieldMap := parseFields(fields)
	l.log(LevelWarn, message, runID, fieldMap)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...interface{}) {
	runID, fieldMap := parseFields(fields)
	l.log(LevelError, message, runID, fieldMap)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields ...interface{}) {
	runID, fieldMap := parseFields(fields)
	l.log(LevelFatal, message, runID, fieldMap)
}

// DebugWithContext logs a debug message with the run ID from ctx
func (l *Logger) DebugWithContext(ctx context.Context, message string, fields ...interface{}) {
	_, fieldMap := parseFields(fields)
	l.log(LevelDebug, message, GetRunID(ctx), fieldMap)
}

// InfoWithContext logs an info message with the run ID from ctx
func (l *Logger) InfoWithContext(ctx context.Context, message string, fields ...interface{}) {
	_, fieldMap := parseFields(fields)
	l.log(LevelInfo, message, GetRunID(ctx), fieldMap)
}

// WarnWithContext logs a warning message with the run ID from ctx
func (l *Logger) WarnWithContext(ctx context.Context, message string, fields ...interface{}) {
	_, fieldMap := parseFields(fields)
	l.log(LevelWarn, message, GetRunID(ctx), fieldMap)
}

// ErrorWithContext logs an error message with the run ID from ctx
func (l *Logger) ErrorWithContext(ctx context.Context, message string, fields ...interface{}) {
	_, fieldMap := parseFields(fields)
	l.log(LevelError, message, GetRunID(ctx), fieldMap)
}

// parseFields parses variable number of key-value pairs into a map
// Expected format: key1, value1, key2, value2, ...
func parseFields(fields []interface{}) (string, map[string]interface{}) {
	runID := ""
	fieldMap := make(map[string]interface{})

	for i := 0; i < len(fields); i++ {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}

		if key == "run_id" && i+1 < len(fields) {
			if id, ok := fields[i+1].(string); ok {
				runID = id
			}
		} else if i+1 < len(fields) {
			value := fields[i+1]
			if err, ok := value.(error); ok {
				value = err.Error()
			}
			fieldMap[key] = value
		}
		i++
	}

	return runID, fieldMap
}
