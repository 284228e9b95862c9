package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID contextKey = "trace_id"
	keyRunID   contextKey = "run_id"
	keyGraph   contextKey = "graph"
	keyNode    contextKey = "node"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithRunID adds run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithGraph adds the executing graph name to context.
func WithGraph(ctx context.Context, graph string) context.Context {
	return context.WithValue(ctx, keyGraph, graph)
}

// Graph extracts the executing graph name from context.
func Graph(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyGraph).(string)
	return v, ok && v != ""
}

// WithNode adds the executing node name to context.
func WithNode(ctx context.Context, node string) context.Context {
	return context.WithValue(ctx, keyNode, node)
}

// Node extracts the executing node name from context.
func Node(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyNode).(string)
	return v, ok && v != ""
}
