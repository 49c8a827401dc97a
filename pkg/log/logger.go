package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs a slog handler as the process default and makes the
// package-level provider log through it. format is "json" or "text".
func SetupLogger(loglevel, format string, w io.Writer) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	ops := slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, &ops)
	case "json":
		handler = slog.NewJSONHandler(w, &ops)
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	l := slog.New(WrapByErrFmtHandler(handler))
	slog.SetDefault(l)
	SetProvider(&SlogProvider{logger: l, level: levelVar})
	return nil
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// ToLogLevel is ParseLevel for hard-coded level names. It panics on an unknown name.
func ToLogLevel(level string) slog.Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(err)
	}
	return l
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// SlogProvider is a LoggerProvider backed by a *slog.Logger.
type SlogProvider struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewSlogProvider wraps an existing handler.
func NewSlogProvider(handler slog.Handler) *SlogProvider {
	return &SlogProvider{logger: slog.New(WrapByErrFmtHandler(handler)), level: new(slog.LevelVar)}
}

// GetLogger implements LoggerProvider.
func (p *SlogProvider) GetLogger() Logger {
	return &slogLogger{l: p.logger}
}

// GetLoggerWithName implements LoggerProvider.
func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{l: p.logger.With(ComponentKey, name)}
}

// SetLevel implements LoggerProvider. It only affects handlers built by SetupLogger.
func (p *SlogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, errorFields(fields)...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, errorFields(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, errorFields(fields)...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, errorFields(fields)...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(errorFields(fields)...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// errorFields turns a leading error value into an ErrAttr so the key/value pairs stay aligned.
func errorFields(fields []any) []any {
	if len(fields) == 0 {
		return fields
	}
	if err, ok := fields[0].(error); ok {
		out := make([]any, 0, len(fields))
		out = append(out, ErrAttr(err))
		return append(out, fields[1:]...)
	}
	return fields
}
