package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning     RunStatus = "running"
	StatusInterrupted RunStatus = "interrupted"
	StatusCompleted   RunStatus = "completed"
	StatusFailed      RunStatus = "failed"
	StatusCancelled   RunStatus = "cancelled"
)

// RunState is everything needed to inspect or resume a run. It is owned by
// one run; callers may persist it at an interrupt and hand it to Resume.
type RunState struct {
	RunID    string          `json:"run_id"`
	Graph    string          `json:"graph"`
	Messages []types.Message `json:"messages"`
	// Next is the node the run paused before.
	Next string `json:"next,omitempty"`
	// RoutePending marks that Next already ran and its output is merged;
	// only its outgoing edge is left to evaluate.
	RoutePending bool      `json:"route_pending,omitempty"`
	Status       RunStatus `json:"status"`
	Steps        int       `json:"steps"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the state.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]types.Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.Clone()
	}
	return &c
}

// RunError wraps a fatal run failure with the context a caller needs to
// persist the log and resume: the last node attempted, the log length and
// the state at failure.
type RunError struct {
	Node      string
	LogLength int
	State     *RunState
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed at node %q (log length %d): %v", e.State.RunID, e.Node, e.LogLength, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Checkpointer persists paused runs.
type Checkpointer interface {
	Save(ctx context.Context, state *RunState) error
}

// Observer receives engine metrics.
type Observer interface {
	ObserveRun(graph string, status RunStatus, duration time.Duration, steps int)
	ObserveNode(graph, node, status string, duration time.Duration)
	ObserveRoute(graph, from, to string)
}

// CompiledGraph is an immutable, validated graph. It is safe to run
// concurrently; every run owns its own RunState.
type CompiledGraph struct {
	name         string
	nodes        map[string]Executor
	order        []string
	edges        map[string]string
	branches     map[string]*branch
	entry        string
	interrupts   map[string]bool
	maxSteps     int
	observer     Observer
	tracer       trace.Tracer
	checkpointer Checkpointer
	logger       *zap.Logger
}

func (g *CompiledGraph) Name() string  { return g.name }
func (g *CompiledGraph) Entry() string { return g.entry }

// Nodes returns node names in registration order.
func (g *CompiledGraph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Targets returns the possible successors of a node.
func (g *CompiledGraph) Targets(node string) []string {
	if to, ok := g.edges[node]; ok {
		return []string{to}
	}
	if b, ok := g.branches[node]; ok {
		return append([]string(nil), b.targets...)
	}
	return nil
}

// Run seeds a new log with initial and drives the graph from its entry node
// until End, an interrupt or a fatal error.
func (g *CompiledGraph) Run(ctx context.Context, initial []types.Message) (*RunState, error) {
	state := &RunState{
		RunID:     uuid.NewString(),
		Graph:     g.name,
		Messages:  MergeMessages(nil, initial),
		Next:      g.entry,
		Status:    StatusRunning,
		UpdatedAt: time.Now(),
	}
	if err := types.ValidateLog(state.Messages); err != nil {
		return nil, err
	}
	return g.execute(ctx, state, false)
}

// Resume continues a run paused at an interrupt, or retries a failed or
// cancelled run from the node it stopped at. The caller may have edited the
// log in between. The run does not pause again before the node it resumes at.
// A run that failed while routing does not execute that node again; only its
// outgoing edge is evaluated.
func (g *CompiledGraph) Resume(ctx context.Context, paused *RunState) (*RunState, error) {
	if paused == nil {
		return nil, types.NewError(types.ErrInvalidState, "resume needs a paused state")
	}
	if paused.Graph != g.name {
		return nil, types.NewError(types.ErrInvalidState,
			fmt.Sprintf("state belongs to graph %q, not %q", paused.Graph, g.name))
	}
	switch paused.Status {
	case StatusInterrupted, StatusFailed, StatusCancelled:
	default:
		return nil, types.NewError(types.ErrInvalidState,
			fmt.Sprintf("run %s is %s and cannot be resumed", paused.RunID, paused.Status))
	}
	if _, ok := g.nodes[paused.Next]; !ok {
		return nil, types.NewError(types.ErrInvalidState,
			fmt.Sprintf("run %s paused before unknown node %q", paused.RunID, paused.Next))
	}

	state := paused.Clone()
	state.Messages = MergeMessages(nil, state.Messages)
	if err := types.ValidateLog(state.Messages); err != nil {
		return nil, err
	}
	state.Status = StatusRunning
	return g.execute(ctx, state, true)
}

func (g *CompiledGraph) execute(ctx context.Context, state *RunState, resumed bool) (*RunState, error) {
	start := time.Now()
	ctx = types.WithRunID(types.WithGraph(ctx, g.name), state.RunID)
	ctx, span := g.tracer.Start(ctx, "graph.run", trace.WithAttributes(
		attribute.String("graph.name", g.name),
		attribute.String("graph.run_id", state.RunID),
		attribute.Bool("graph.resumed", resumed),
	))
	defer span.End()

	logger := g.logger.With(zap.String("run_id", state.RunID))
	logger.Info("run started",
		zap.String("node", state.Next),
		zap.Int("messages", len(state.Messages)),
		zap.Bool("resumed", resumed))

	finished, err := g.loop(ctx, state, resumed, logger)

	finished.UpdatedAt = time.Now()
	if g.observer != nil {
		g.observer.ObserveRun(g.name, finished.Status, time.Since(start), finished.Steps)
	}
	span.SetAttributes(attribute.String("graph.status", string(finished.Status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", zap.String("status", string(finished.Status)), zap.Error(err))
		return finished, err
	}

	if finished.Status == StatusInterrupted && g.checkpointer != nil {
		if err := g.checkpointer.Save(ctx, finished); err != nil {
			logger.Error("checkpoint save failed", zap.Error(err))
			return finished, fmt.Errorf("save checkpoint: %w", err)
		}
	}

	logger.Info("run finished",
		zap.String("status", string(finished.Status)),
		zap.String("next", finished.Next),
		zap.Int("steps", finished.Steps),
		zap.Int("messages", len(finished.Messages)),
		zap.Duration("duration", time.Since(start)))
	return finished, nil
}

func (g *CompiledGraph) fail(state *RunState, node string, status RunStatus, err error) (*RunState, error) {
	state.Status = status
	state.Next = node
	return state, &RunError{Node: node, LogLength: len(state.Messages), State: state.Clone(), Err: err}
}

func (g *CompiledGraph) loop(ctx context.Context, state *RunState, skipInterrupt bool, logger *zap.Logger) (*RunState, error) {
	current := state.Next
	steps := 0
	routeOnly := state.RoutePending

	for {
		if current == End {
			state.Status = StatusCompleted
			state.Next = ""
			return state, nil
		}

		if err := ctx.Err(); err != nil {
			return g.fail(state, current, StatusCancelled, err)
		}

		if routeOnly {
			// 节点已执行，只重新求值出边
			logger.Info("re-evaluating route", zap.String("node", current))
		} else {
			if g.interrupts[current] && !skipInterrupt {
				state.Status = StatusInterrupted
				state.Next = current
				emit(ctx, StreamEvent{Type: EventInterrupt, RunID: state.RunID, Node: current, Messages: len(state.Messages)})
				logger.Info("run interrupted", zap.String("node", current))
				return state, nil
			}

			if steps >= g.maxSteps {
				err := types.NewError(types.ErrStepLimit,
					fmt.Sprintf("exceeded %d steps without reaching %s", g.maxSteps, End)).WithNode(current)
				return g.fail(state, current, StatusFailed, err)
			}
			steps++
			state.Steps++

			if err := g.runNode(ctx, state, current, logger); err != nil {
				status := StatusFailed
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					status = StatusCancelled
				}
				return g.fail(state, current, status, err)
			}
		}
		skipInterrupt = false
		routeOnly = false

		next, err := g.route(current, state.Messages)
		if err != nil {
			state.RoutePending = true
			return g.fail(state, current, StatusFailed, err)
		}
		state.RoutePending = false
		if g.observer != nil {
			g.observer.ObserveRoute(g.name, current, next)
		}
		emit(ctx, StreamEvent{Type: EventRoute, RunID: state.RunID, Node: current, Next: next, Messages: len(state.Messages)})
		logger.Debug("routed", zap.String("from", current), zap.String("to", next))

		current = next
		state.Next = next
	}
}

// runNode executes one node and merges its output into the log. On error the
// log is left untouched.
func (g *CompiledGraph) runNode(ctx context.Context, state *RunState, name string, logger *zap.Logger) error {
	executor := g.nodes[name]
	start := time.Now()

	ctx = types.WithNode(ctx, name)
	ctx, span := g.tracer.Start(ctx, "graph.node", trace.WithAttributes(
		attribute.String("graph.node", name),
		attribute.Int("graph.log_length", len(state.Messages)),
	))
	defer span.End()

	emit(ctx, StreamEvent{Type: EventNodeStart, RunID: state.RunID, Node: name, Messages: len(state.Messages)})

	view := make([]types.Message, len(state.Messages))
	copy(view, state.Messages)

	output, err := executor.Execute(ctx, view)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if te, ok := types.AsError(err); ok && te.Code == types.ErrCapability {
			te.WithDetail("log_length", len(state.Messages))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.observeNode(name, "error", start)
		emit(ctx, StreamEvent{Type: EventNodeError, RunID: state.RunID, Node: name, Messages: len(state.Messages), Error: err})
		logger.Error("node failed", zap.String("node", name), zap.Error(err), zap.Duration("duration", time.Since(start)))
		return err
	}

	if len(output) == 0 {
		logger.Warn("node produced no messages", zap.String("node", name))
	}

	now := time.Now()
	stamped := make([]types.Message, len(output))
	for i, m := range output {
		m.Node = name
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		stamped[i] = m
	}

	merged := MergeMessages(state.Messages, stamped)
	if err := types.ValidateLog(merged); err != nil {
		g.observeNode(name, "error", start)
		emit(ctx, StreamEvent{Type: EventNodeError, RunID: state.RunID, Node: name, Messages: len(state.Messages), Error: err})
		return err
	}
	state.Messages = merged

	g.observeNode(name, "ok", start)
	emit(ctx, StreamEvent{Type: EventNodeComplete, RunID: state.RunID, Node: name, Messages: len(merged), Produced: len(output)})
	logger.Debug("node completed",
		zap.String("node", name),
		zap.Int("produced", len(output)),
		zap.Int("messages", len(merged)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (g *CompiledGraph) observeNode(name, status string, start time.Time) {
	if g.observer != nil {
		g.observer.ObserveNode(g.name, name, status, time.Since(start))
	}
}

func (g *CompiledGraph) route(from string, messages []types.Message) (string, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	b := g.branches[from]
	target, err := b.router(messages)
	if err != nil {
		return "", types.NewError(types.ErrUnknownRoute, "router failed").WithNode(from).WithCause(err)
	}
	if !b.declared[target] {
		return "", types.NewUnknownRouteError(from, target, b.targets)
	}
	return target, nil
}
