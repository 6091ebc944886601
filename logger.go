package i3ipc

import (
	"io"
	"log/slog"
)

// Logger is the interface for structured logging.
// *slog.Logger satisfies it, so callers usually pass slog.Default() or a
// logger of their own through LoggerOption.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger discards everything. The client reports failures through
// returned errors only; diagnostics are opt-in.
func defaultLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
