// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type runCtxKey struct{}
type markerCtxKey struct{}

// WithRunID attaches the per-invocation correlation ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run ID, or "" when absent.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithMarker attaches the trigger marker string to the context.
func WithMarker(ctx context.Context, marker string) context.Context {
	return context.WithValue(ctx, markerCtxKey{}, marker)
}

// MarkerFromContext returns the trigger marker, or "" when absent.
func MarkerFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(markerCtxKey{}).(string); ok {
		return m
	}
	return ""
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if m := MarkerFromContext(ctx); m != "" {
		fields = append(fields, zap.String("run.marker", m))
	}
	return fields
}
