package logging

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so handlers and stores receive an explicit logger
// instead of relying on ambient globals.
type Logger struct {
	*slog.Logger
}

// New creates a logger at the given level. In development the output is plain
// text; everywhere else it is JSON.
func New(level, env string) *Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a JSON logger at info level.
func Default() *Logger {
	return New("info", "")
}
