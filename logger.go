package hyperstage

import (
	"context"
	"log/slog"
	"os"
	"slices"
)

// Logger is a slog.Logger with helpers that keep field names consistent
// across stage, fetch and eviction records.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger logs JSON records at level and above to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger logs key=value records at level and above to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithDataset adds the dataset shape to every record.
func (l *Logger) WithDataset(extents []uint64, elemSize uint64) *Logger {
	return &Logger{Logger: l.With("extents", slices.Clone(extents), "elem_size", elemSize)}
}

// LogRead logs a staged read.
func (l *Logger) LogRead(ctx context.Context, start, count []uint64, hits, misses int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read failed", "start", start, "count", count, "error", err)
		return
	}
	l.DebugContext(ctx, "read completed",
		"start", start,
		"count", count,
		"hits", hits,
		"misses", misses,
	)
}

// LogFetch logs the storage reads issued to make a range resident.
func (l *Logger) LogFetch(ctx context.Context, strategy string, reads int, bytes uint64, err error) {
	if err != nil {
		l.WarnContext(ctx, "fetch failed", "strategy", strategy, "error", err)
		return
	}
	if reads == 0 {
		return
	}
	l.DebugContext(ctx, "fetch completed",
		"strategy", strategy,
		"reads", reads,
		"bytes", bytes,
	)
}

// LogEviction logs an evicted chunk. coords is copied.
func (l *Logger) LogEviction(ctx context.Context, coords []uint64) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	l.DebugContext(ctx, "chunk evicted", "chunk", slices.Clone(coords))
}

// LogRefetch logs a chunk that was evicted before copy-out and read again.
func (l *Logger) LogRefetch(ctx context.Context, coords []uint64) {
	l.InfoContext(ctx, "chunk refetched", "chunk", slices.Clone(coords))
}
