package redline

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with redline-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithDocument adds a document id field to the logger.
func (l *Logger) WithDocument(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("document", id),
	}
}

// LogCreate logs a create operation.
func (l *Logger) LogCreate(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "document created",
			"document", id,
		)
	}
}

// LogMutation logs a single-document mutation (append, update).
func (l *Logger) LogMutation(ctx context.Context, op, id string, version int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"document", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" committed",
			"document", id,
			"version", version,
		)
	}
}

// LogBatch logs a batch redline.
func (l *Logger) LogBatch(ctx context.Context, op string, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, op+" completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"count", count,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"document", id,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "document deleted",
			"document", id,
		)
	}
}

// LogSearch logs a search operation. id is empty for global searches.
func (l *Logger) LogSearch(ctx context.Context, id, query string, hits int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"document", id,
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"document", id,
			"query", query,
			"hits", hits,
		)
	}
}

// LogLockStolen logs a release that found its tokens replaced.
func (l *Logger) LogLockStolen(ctx context.Context, resources []string, err error) {
	l.WarnContext(ctx, "lock stolen before release",
		"resources", resources,
		"error", err,
	)
}
