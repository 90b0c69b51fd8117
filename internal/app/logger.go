package app

import (
	"io"
	"log/slog"
)

// newLogger maps the 0-4 verbosity scale onto slog levels. It does not set
// the global logger, allowing for isolated logger instances. Level 4 adds
// source locations on top of full debug output.
func newLogger(verbosity int, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch verbosity {
	case 0:
		level = slog.LevelError
	case 1:
		level = slog.LevelWarn
	case 2:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: verbosity >= 4,
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}
