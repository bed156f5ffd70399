package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the application-wide structured logger instance.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// ParseLevel maps "debug", "info", "warn", "error" to a slog level,
// defaulting to warn so normal CLI output stays clean.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// InitLogger initializes the global logger with the specified level and format.
// format: "json" or "text" (defaults to "text"). Output goes to w, or stderr when nil.
func InitLogger(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
	return Logger
}

// WithStore returns a logger tagged with the session store backend.
func WithStore(backend string) *slog.Logger {
	return Logger.With("store", backend)
}

// WithError returns a logger with a masked error field.
func WithError(err error) *slog.Logger {
	if err == nil {
		return Logger
	}
	return Logger.With("error", Mask(err.Error()))
}
