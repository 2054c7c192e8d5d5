// Package observability provides structured logging helpers for Hisho.
//
// It wraps log/slog with trace ID propagation so every log line emitted
// while a webhook event is being processed carries the event's trace ID.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/harunoka/hisho/common/trace"
)

// Setup configures the global slog logger according to the provided level and
// format strings (e.g. level="info", format="json").
func Setup(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithTrace returns a child logger that always includes the trace_id from ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return slog.Default()
	}
	return slog.With("trace_id", traceID)
}

// MaskUserID shortens an opaque platform user ID for logs and for replies
// when the profile lookup fails. "U1234567890abcdef" becomes "U1234…cdef".
func MaskUserID(id string) string {
	const head, tail = 5, 4
	r := []rune(id)
	if len(r) <= head+tail {
		return id
	}
	return string(r[:head]) + "…" + string(r[len(r)-tail:])
}
