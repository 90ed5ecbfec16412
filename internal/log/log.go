// Package log builds the slog loggers used across the assistant core.
//
// Loggers are dependency-injected, never global: each component receives a
// Logger in its constructor and adds its own context via With. The Logger
// type is an alias for *slog.Logger, so there is no custom interface to
// satisfy and the full slog ecosystem stays available.
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	r := router.New(departments, embeddings, cfg, logger.With("component", "router"))
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is an alias for *slog.Logger, used as the DI dependency type.
type Logger = *slog.Logger

// Config defines logger options.
type Config struct {
	// Level is the minimum level emitted. Default: slog.LevelInfo.
	Level slog.Level

	// JSON switches output from text to JSON format.
	JSON bool

	// AddSource attaches source file positions to entries.
	AddSource bool
}

// New creates a logger writing to os.Stderr. Stderr keeps stdout clean for
// command output.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Tests use this with a buffer
// to inspect output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// NewNop creates a logger that discards everything. Test use only;
// production code always logs somewhere.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
