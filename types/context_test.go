package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithRunID(ctx, "run")
	if got, ok := RunID(ctx); !ok || got != "run" {
		t.Fatalf("RunID mismatch: %v %v", got, ok)
	}

	ctx = WithGraph(ctx, "reflection")
	if got, ok := Graph(ctx); !ok || got != "reflection" {
		t.Fatalf("Graph mismatch: %v %v", got, ok)
	}

	ctx = WithNode(ctx, "Generate")
	if got, ok := Node(ctx); !ok || got != "Generate" {
		t.Fatalf("Node mismatch: %v %v", got, ok)
	}
}

func TestContextHelpers_Missing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := RunID(ctx); ok {
		t.Fatalf("expected no run id")
	}
	if _, ok := Node(WithNode(ctx, "")); ok {
		t.Fatalf("empty node must not be reported")
	}
}
