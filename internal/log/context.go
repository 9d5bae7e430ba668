package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// LogMutationFailed logs a failed remote mutation with the standard fields.
func LogMutationFailed(ctx context.Context, logger *Logger, op, userID string, err error, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	all := fields.
		WithOperation(op).
		WithUser(userID).
		WithError(err)
	logger.ErrorContext(ctx, "Remote mutation failed", all.ToSlice()...)
}
