package quergo

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/quergo/quergo/query"
)

// Logger wraps slog.Logger with quergo-specific context.
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
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithQuery adds the query descriptor to the logger.
func (l *Logger) WithQuery(desc query.Descriptor) *Logger {
	return &Logger{Logger: l.Logger.With("query", desc.String())}
}

// LogExecute logs one Execute call.
func (l *Logger) LogExecute(ctx context.Context, desc query.Descriptor, entities int, cached bool, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "execute failed",
			"query", desc.String(),
			"entities", entities,
			"cached", cached,
			"duration", d,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "execute completed",
		"query", desc.String(),
		"entities", entities,
		"cached", cached,
		"duration", d,
	)
}

// LogCacheDegraded logs a cache-populate attempt skipped due to memory
// pressure. The engine rate-limits these calls.
func (l *Logger) LogCacheDegraded(ctx context.Context, desc query.Descriptor, err error) {
	l.WarnContext(ctx, "cache populate skipped, serving uncached",
		"query", desc.String(),
		"error", err,
	)
}
