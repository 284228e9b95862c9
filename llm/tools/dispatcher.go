package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Observer receives one callback per finished tool call. status is "ok",
// or the error code of the failure.
type Observer interface {
	ObserveToolCall(tool, status string, duration time.Duration)
}

// Dispatcher executes a batch of tool calls against a Registry.
type Dispatcher struct {
	registry       *Registry
	maxConcurrency int
	observer       Observer
	tracer         trace.Tracer
	logger         *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxConcurrency caps how many calls of one batch run at once. Zero means
// every call in the batch runs at once.
func WithMaxConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxConcurrency = n }
}

// WithObserver installs a metrics observer.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// NewDispatcher creates a dispatcher bound to registry.
func NewDispatcher(registry *Registry, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		registry: registry,
		tracer:   otel.Tracer("github.com/BaSui01/agentgraph/llm/tools"),
		logger:   logger.With(zap.String("component", "tool_dispatcher")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves names against.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs every call concurrently, waits for all of them, and returns
// one result per call in declaration order. Validation and execution failures
// become error results. If ctx is cancelled before the batch completes,
// Dispatch returns the context error and no results.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []types.ToolCall) ([]types.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return []types.ToolResult{}, nil
	}

	results := make([]types.ToolResult, len(calls))

	var g errgroup.Group
	if d.maxConcurrency > 0 {
		g.SetLimit(d.maxConcurrency)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = d.execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		d.logger.Warn("tool batch cancelled, discarding results",
			zap.Int("calls", len(calls)), zap.Error(err))
		return nil, err
	}
	return results, nil
}

func (d *Dispatcher) execute(ctx context.Context, call types.ToolCall) (result types.ToolResult) {
	start := time.Now()
	result = types.ToolResult{ToolCallID: call.ID, Name: call.Name}

	ctx, span := d.tracer.Start(ctx, "tool."+call.Name,
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		))
	defer func() {
		result.Duration = time.Since(start)
		status := "ok"
		if result.IsError() {
			status = string(result.ErrorCode)
			span.SetStatus(codes.Error, result.Error)
		}
		span.End()
		if d.observer != nil {
			d.observer.ObserveToolCall(call.Name, status, result.Duration)
		}
	}()

	entry, ok := d.registry.lookup(call.Name)
	if !ok {
		d.logger.Warn("tool not registered", zap.String("name", call.Name), zap.String("call_id", call.ID))
		return fail(result, types.ErrToolValidation, fmt.Sprintf("tool %q is not registered", call.Name))
	}

	if err := entry.validate(call.Arguments); err != nil {
		d.logger.Warn("invalid tool arguments", zap.String("name", call.Name), zap.Error(err))
		msg := err.Error()
		if te, ok := types.AsError(err); ok {
			msg = te.Message
		}
		return fail(result, types.ErrToolValidation, msg)
	}

	if !entry.allow() {
		d.logger.Warn("rate limit exceeded", zap.String("name", call.Name))
		return fail(result, types.ErrToolExecution, fmt.Sprintf("rate limit exceeded for %q", call.Name))
	}

	timeout := entry.tool.Timeout
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res json.RawMessage
		err error
	}
	// 带缓冲的 channel，超时后工具 goroutine 仍可退出
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		res, err := entry.tool.Func(execCtx, call.Arguments)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && execCtx.Err() != nil && ctx.Err() == nil {
			return fail(result, types.ErrToolExecution, fmt.Sprintf("execution timeout after %s", timeout))
		}
		if out.err != nil {
			d.logger.Error("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(out.err),
				zap.Duration("duration", time.Since(start)))
			return fail(result, types.ErrToolExecution, out.err.Error())
		}
		result.Result = out.res
		d.logger.Debug("tool executed",
			zap.String("name", call.Name),
			zap.Duration("duration", time.Since(start)))
		return result

	case <-execCtx.Done():
		d.logger.Error("tool execution timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", timeout))
		return fail(result, types.ErrToolExecution, fmt.Sprintf("execution timeout after %s", timeout))
	}
}

func fail(r types.ToolResult, code types.ErrorCode, msg string) types.ToolResult {
	r.Error = msg
	r.ErrorCode = code
	return r
}
