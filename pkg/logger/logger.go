package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// Setup installs the process-wide slog default writing to stdout.
func Setup(level string, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. Format "json" selects the JSON handler;
// anything else falls back to text.
func New(w io.Writer, level string, format string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithOperation tags ctx with an operation id (a CLI invocation, a Kafka
// message key) so nested components log it.
func WithOperation(ctx context.Context, opID string) context.Context {
	return context.WithValue(ctx, contextKey{}, opID)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if opID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("op_id", opID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
