package photomap

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with photomap-specific context. Non-fatal
// warnings from scans, lookups and cache loads flow through it; it is
// the "external logging sink" of the collaborator-facing surface.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is
// nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithRoot adds the photo root field to the logger.
func (l *Logger) WithRoot(root string) *Logger {
	return &Logger{Logger: l.Logger.With("root", root)}
}

// LogScan logs a folder scan.
func (l *Logger) LogScan(ctx context.Context, folder string, photos int, err error) {
	if err != nil {
		l.WarnContext(ctx, "scan aborted",
			"folder", folder,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "scan completed",
			"folder", folder,
			"photos", photos,
		)
	}
}

// LogDataset logs a combined dataset load or rebuild.
func (l *Logger) LogDataset(ctx context.Context, rows int, err error) {
	if err != nil {
		l.WarnContext(ctx, "dataset load failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "dataset loaded",
			"rows", rows,
		)
	}
}
