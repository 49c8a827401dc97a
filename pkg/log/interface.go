// Package log provides the structured logging interface used across kddbench.
//
// The interface is slog-compatible so a run can log through log/slog (the CLI
// default, see SetupLogger) or through rs/zerolog (NewZerologProvider) without
// the pipeline stages knowing which backend is in use.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("pipeline").With(log.AlgorithmKey, "OneR")
//	logger.Info("stage finished",
//	    log.StageKey, log.StageScale,
//	    log.SamplesKey, 125973,
//	    log.FeaturesKey, 122,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. If the first field of Error is an
// error value, implementations attach it under ErrAttrKey so that stack traces
// from cockroachdb/errors are preserved.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop the run, such as a skipped stage.
	Warn(msg string, fields ...any)

	// Error logs failures. The first field may be an error value.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers. Components take a Logger, the CLI chooses the provider.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
