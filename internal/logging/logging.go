// Package logging provides structured logging built on zerolog, with a
// request-scoped trace ID carried through context.Context the way the
// teacher's middleware threads a trace ID from HTTP request to log line.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type traceIDKey struct{}

// New builds the base logger for the service, writing JSON lines to w with
// the given minimum level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// WithTraceID returns a context carrying traceID, retrievable with
// TraceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// NewTraceID generates a fresh trace ID for a request that arrived without
// one.
func NewTraceID() string {
	return uuid.NewString()
}

// TraceID extracts the trace ID from ctx, or "" if none is set.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey{}).(string)
	return v
}

// FromContext returns logger enriched with the request's trace ID, if any.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id := TraceID(ctx); id != "" {
		return logger.With().Str("trace_id", id).Logger()
	}
	return logger
}
