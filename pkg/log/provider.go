package log

import (
	"io"
	"log/slog"
	"sync"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewSlogProvider(slog.NewTextHandler(io.Discard, nil))
)

// SetProvider replaces the package-level provider used by GetLogger and GetLoggerWithName.
func SetProvider(p LoggerProvider) {
	if p == nil {
		return
	}
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// Provider returns the current package-level provider.
func Provider() LoggerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider
}

// GetLogger returns the default logger of the current provider.
func GetLogger() Logger {
	return Provider().GetLogger()
}

// GetLoggerWithName returns a component logger of the current provider.
func GetLoggerWithName(name string) Logger {
	return Provider().GetLoggerWithName(name)
}
