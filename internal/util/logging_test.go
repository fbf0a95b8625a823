package util

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Fatal("expected the default logger when none is stored")
	}
}

func TestContextWithLoggerRoundTrip(t *testing.T) {
	child := slog.Default().With("request_id", "abc123")
	ctx := ContextWithLogger(context.Background(), child)
	if got := LoggerFromContext(ctx); got != child {
		t.Fatal("expected the stored child logger")
	}
}
