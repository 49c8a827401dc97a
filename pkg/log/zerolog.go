package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologProvider is a LoggerProvider backed by rs/zerolog.
type ZerologProvider struct {
	base zerolog.Logger
}

// NewZerologProvider returns a provider writing JSON lines to stderr.
func NewZerologProvider(level slog.Level) *ZerologProvider {
	return NewZerologProviderWithWriter(level, os.Stderr)
}

// NewZerologProviderWithWriter returns a provider writing JSON lines to w.
func NewZerologProviderWithWriter(level slog.Level, w io.Writer) *ZerologProvider {
	base := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(Level(level)))
	return &ZerologProvider{base: base}
}

// NewConsoleProvider returns a provider with zerolog's human readable console output.
func NewConsoleProvider(level slog.Level, w io.Writer) *ZerologProvider {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return NewZerologProviderWithWriter(level, cw)
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{l: p.base}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{l: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider. Loggers handed out earlier keep their level.
func (p *ZerologProvider) SetLevel(level Level) {
	p.base = p.base.Level(toZerologLevel(level))
}

// WarnFunc returns a sink for errors.SetZerologWarnFunc. Warnings that
// implement zerolog.LogObjectMarshaler are logged as a structured object.
func (p *ZerologProvider) WarnFunc() func(error) {
	l := p.base.With().Str(ComponentKey, "warnings").Logger()
	return func(w error) {
		ev := l.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", m)
		}
		ev.Msg(w.Error())
	}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, fields ...any) { emit(z.l.Debug(), msg, fields) }
func (z *zerologLogger) Info(msg string, fields ...any)  { emit(z.l.Info(), msg, fields) }
func (z *zerologLogger) Warn(msg string, fields ...any)  { emit(z.l.Warn(), msg, fields) }
func (z *zerologLogger) Error(msg string, fields ...any) { emit(z.l.Error(), msg, fields) }

func (z *zerologLogger) With(fields ...any) Logger {
	ctx := z.l.With()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ctx = ctx.AnErr(ErrAttrKey, err)
			fields = fields[1:]
		}
	}
	return &zerologLogger{l: ctx.Fields(fields).Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.l.GetLevel()
}

func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.AnErr(ErrAttrKey, err)
			fields = fields[1:]
		}
	}
	ev.Fields(fields).Msg(msg)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level < LevelInfo:
		return zerolog.DebugLevel
	case level < LevelWarn:
		return zerolog.InfoLevel
	case level < LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
