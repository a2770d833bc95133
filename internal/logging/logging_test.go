package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if TraceID(ctx) != "" {
		t.Error("TraceID() on bare context should be empty")
	}

	ctx = WithTraceID(ctx, "trace-123")
	if got := TraceID(ctx); got != "trace-123" {
		t.Errorf("TraceID() = %q, want trace-123", got)
	}
}

func TestNewTraceIDIsUnique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	if a == b {
		t.Error("NewTraceID() returned the same value twice")
	}
}

func TestFromContextAddsTraceField(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, zerolog.InfoLevel)

	ctx := WithTraceID(context.Background(), "trace-abc")
	logger := FromContext(ctx, base)
	logger.Info().Msg("hello")

	if !bytes.Contains(buf.Bytes(), []byte("trace-abc")) {
		t.Errorf("log output %q does not contain trace id", buf.String())
	}
}

func TestFromContextWithoutTraceIDLeavesLoggerUnchanged(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, zerolog.InfoLevel)

	logger := FromContext(context.Background(), base)
	logger.Info().Msg("hello")

	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Error("log output should not contain trace_id when none was set")
	}
}
