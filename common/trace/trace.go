// Package trace provides per-event trace IDs and their context propagation.
//
// Every inbound webhook event is assigned a trace ID when it enters the
// engine; log lines emitted while the event is being processed carry the
// same ID so a single conversation turn can be followed across packages.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// traceKey is the unexported context key holding the trace ID.
type traceKey struct{}

// NewID returns a fresh trace ID.
func NewID() string {
	return "ev_" + uuid.NewString()
}

// With returns a child context carrying the given trace ID.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// FromContext extracts the trace ID from ctx, returning "" if absent.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
