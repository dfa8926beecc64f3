package vecdir

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vecdir-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000), // Unreachable level
		})),
	}
}

// WithPath adds a collection path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogCreate logs a create operation.
func (l *Logger) LogCreate(ctx context.Context, path string, dimensions int, existed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create failed",
			"path", path,
			"dimensions", dimensions,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "collection created",
		"path", path,
		"dimensions", dimensions,
		"existed", existed,
	)
}

// LogLoad logs loading a collection from disk.
func (l *Logger) LogLoad(ctx context.Context, path string, records, tombstones int, dirty bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "collection loaded",
		"path", path,
		"records", records,
		"tombstones", tombstones,
		"dirty", dirty,
	)
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, path, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"path", path,
			"id", id,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "insert completed",
		"path", path,
		"id", id,
	)
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, path, id string, deleted bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"path", path,
			"id", id,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "delete completed",
		"path", path,
		"id", id,
		"deleted", deleted,
	)
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, path string, vectors int, sizeBytes int64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"path", path,
			"vectors", vectors,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"path", path,
		"vectors", vectors,
		"size_bytes", sizeBytes,
		"elapsed", elapsed,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, path string, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"path", path,
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"path", path,
		"k", k,
		"results", resultsFound,
	)
}

// LogRecovery logs record log replay on load.
func (l *Logger) LogRecovery(ctx context.Context, path string, replayed int, purged bool) {
	if purged {
		l.WarnContext(ctx, "completed interrupted purge",
			"path", path,
			"records_replayed", replayed,
		)
		return
	}
	l.DebugContext(ctx, "record log replayed",
		"path", path,
		"records_replayed", replayed,
	)
}

// LogMirror logs an index mirror upload.
func (l *Logger) LogMirror(ctx context.Context, path, key string, err error) {
	if err != nil {
		l.WarnContext(ctx, "index mirror failed",
			"path", path,
			"key", key,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "index mirrored",
		"path", path,
		"key", key,
	)
}
