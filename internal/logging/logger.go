// Package logging defines the minimal, printf-style logging contract used
// throughout the coordination core, backed by the standard library's
// structured logger so every component logs at a consistent level and with a
// consistent component tag.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
)

// Logger is a minimal, printf-style logging contract. Core packages depend on
// this interface, never on slog directly, so tests can inject a no-op or
// recording logger without pulling in handler configuration.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger { return nopLogger{} }

// IsNil reports whether logger is nil or wraps a nil pointer/interface value.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

type slogLogger struct {
	inner *slog.Logger
}

func (l *slogLogger) Debug(format string, args ...any) { l.inner.Debug(sprintf(format, args)) }
func (l *slogLogger) Info(format string, args ...any)  { l.inner.Info(sprintf(format, args)) }
func (l *slogLogger) Warn(format string, args ...any)  { l.inner.Warn(sprintf(format, args)) }
func (l *slogLogger) Error(format string, args ...any) { l.inner.Error(sprintf(format, args)) }

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// NewComponent returns a Logger scoped to component, writing structured JSON
// to stderr at the given level.
func NewComponent(component string, level slog.Level) Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &slogLogger{inner: slog.New(handler).With("component", component)}
}

// FromSlog adapts an existing *slog.Logger to the Logger interface.
func FromSlog(inner *slog.Logger) Logger {
	if inner == nil {
		return Nop()
	}
	return &slogLogger{inner: inner}
}
