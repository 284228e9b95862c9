package workflow

import "context"

// StreamEventType defines the type of graph stream event.
type StreamEventType string

const (
	// EventNodeStart is emitted before a node executes.
	EventNodeStart StreamEventType = "node_start"
	// EventNodeComplete is emitted after a node's output has been merged.
	EventNodeComplete StreamEventType = "node_complete"
	// EventNodeError is emitted when a node fails.
	EventNodeError StreamEventType = "node_error"
	// EventRoute is emitted after an edge has been evaluated.
	EventRoute StreamEventType = "route"
	// EventInterrupt is emitted when the run pauses before a node.
	EventInterrupt StreamEventType = "interrupt"
)

// StreamEvent carries information about a graph execution event.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	RunID    string          `json:"run_id"`
	Node     string          `json:"node,omitempty"`
	Next     string          `json:"next,omitempty"`     // route target
	Messages int             `json:"messages"`           // log length at emission
	Produced int             `json:"produced,omitempty"` // messages merged by the node
	Error    error           `json:"-"`
}

// StreamEmitter is a callback that receives graph stream events. It runs on
// the run's goroutine and must not block.
type StreamEmitter func(StreamEvent)

type streamEmitterKey struct{}

// WithStreamEmitter stores a StreamEmitter in the context.
func WithStreamEmitter(ctx context.Context, emitter StreamEmitter) context.Context {
	if emitter == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, streamEmitterKey{}, emitter)
}

func streamEmitterFromContext(ctx context.Context) (StreamEmitter, bool) {
	if ctx == nil {
		return nil, false
	}
	emit, ok := ctx.Value(streamEmitterKey{}).(StreamEmitter)
	return emit, ok && emit != nil
}

func emit(ctx context.Context, ev StreamEvent) {
	if fn, ok := streamEmitterFromContext(ctx); ok {
		fn(ev)
	}
}
