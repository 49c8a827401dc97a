package config

import (
	"io"
	"strings"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
	"github.com/YuminosukeSato/kddbench/pkg/log"
)

// Setup installs the process logger. "text" and "json" go through slog with
// stack traces on errors; "console" uses the zerolog console writer. Warnings
// raised through errors.Warn are routed to the same output.
func (l Log) Setup(w io.Writer) error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return errors.NewConfigurationError("config", "log.level", err.Error())
	}

	if strings.EqualFold(l.Format, "console") {
		p := log.NewConsoleProvider(level, w)
		log.SetProvider(p)
		errors.SetZerologWarnFunc(p.WarnFunc())
		return nil
	}

	if err := log.SetupLogger(l.Level, l.Format, w); err != nil {
		return errors.NewConfigurationError("config", "log.format", err.Error())
	}
	warnings := log.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(warning error) {
		warnings.Warn(warning.Error(), log.ErrorCodeKey, "WARNING")
	})
	return nil
}
