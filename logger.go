package cartflow

import (
	"context"
	"log/slog"
)

// Logger is the logging interface used across cartflow.
// Arguments after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...interface{}) {}
func (noopLogger) Info(msg string, args ...interface{})  {}
func (noopLogger) Warn(msg string, args ...interface{})  {}
func (noopLogger) Error(msg string, args ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{log: l}
}

// With returns a logger that adds args to every record.
func (l *SlogLogger) With(args ...interface{}) *SlogLogger {
	return &SlogLogger{log: l.log.With(args...)}
}

// Debug logs at slog.LevelDebug.
func (l *SlogLogger) Debug(msg string, args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at slog.LevelInfo.
func (l *SlogLogger) Info(msg string, args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at slog.LevelWarn.
func (l *SlogLogger) Warn(msg string, args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at slog.LevelError.
func (l *SlogLogger) Error(msg string, args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelError, msg, args...)
}
