// Package logger provides structured logging for the server.
package logger

import (
	"log/slog"
	"os"
)

// Options configures handler construction.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "text"
}

// New creates a slog.Logger according to the options. The debug level also
// turns on source locations.
func New(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)

	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, hopts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, hopts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
