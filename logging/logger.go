// Package logging provides structured logging for report runs.
// It wraps Go's log/slog package with level parsing and per-phase
// child loggers so each pipeline step can be traced in the output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats supported by the logger
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger provides structured logging with persistent attributes.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a Logger writing to w. A nil writer means stderr.
//
// The level parameter controls which messages are logged:
//   - DEBUG: All messages
//   - INFO: Info, Warn, and Error messages
//   - WARN: Warn and Error messages
//   - ERROR: Only Error messages
//
// format selects the handler: "json" for JSON lines, anything else for
// the human-readable text handler.
func NewLogger(w io.Writer, level, format string) *Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{logger: slog.New(handler)}
}

// NopLogger returns a Logger that discards everything. Used by tests and
// by library callers that do not care about progress output.
func NopLogger() *Logger {
	return &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Phase returns a child logger tagged with the pipeline phase name
// ("fetch", "load", "clean", "analyze", "render", "forecast", "write").
func (l *Logger) Phase(phase string) *Logger {
	return l.With("phase", phase)
}

// With returns a child logger with arbitrary key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return NopLogger().With(args...)
	}
	return &Logger{logger: l.logger.With(args...)}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) { l.slog().Debug(msg, args...) }

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) { l.slog().Info(msg, args...) }

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) { l.slog().Warn(msg, args...) }

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) { l.slog().Error(msg, args...) }

func (l *Logger) slog() *slog.Logger {
	if l == nil || l.logger == nil {
		return NopLogger().logger
	}
	return l.logger
}
