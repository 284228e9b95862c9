package workflow

import (
	"context"

	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/types"
)

// Executor is the unit of work behind a node. It receives the current log,
// which it must treat as read-only, and returns the messages to merge.
type Executor interface {
	Execute(ctx context.Context, messages []types.Message) ([]types.Message, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, messages []types.Message) ([]types.Message, error)

func (f ExecutorFunc) Execute(ctx context.Context, messages []types.Message) ([]types.Message, error) {
	return f(ctx, messages)
}

// ModelStep invokes the model capability with a fixed persona and tool set
// and returns the single assistant message it produces.
type ModelStep struct {
	Name    string
	Persona string
	// PersonaFunc, when set, is evaluated on every call instead of Persona.
	PersonaFunc func() string
	Model       llm.Model
	Tools       []types.ToolSchema
}

// NewModelStep creates a model step.
func NewModelStep(name, persona string, model llm.Model, tools []types.ToolSchema) *ModelStep {
	return &ModelStep{Name: name, Persona: persona, Model: model, Tools: tools}
}

func (s *ModelStep) persona() string {
	if s.PersonaFunc != nil {
		return s.PersonaFunc()
	}
	return s.Persona
}

// Execute implements Executor.
func (s *ModelStep) Execute(ctx context.Context, messages []types.Message) ([]types.Message, error) {
	if s.Model == nil {
		return nil, types.NewConfigurationError("model step %q has no model", s.Name)
	}

	msg, err := s.Model.Invoke(ctx, s.persona(), messages, s.Tools)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, types.NewCapabilityError(s.Name, err)
	}

	msg.Role = types.RoleAssistant
	seen := make(map[string]bool, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		if seen[call.ID] {
			cause := types.NewError(types.ErrInvalidLog, "model declared the same tool call id twice").
				WithDetail("tool_call_id", call.ID)
			return nil, types.NewCapabilityError(s.Name, cause)
		}
		seen[call.ID] = true
	}
	return []types.Message{msg}, nil
}

// ToolDispatcher runs a batch of tool calls; *tools.Dispatcher implements it.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []types.ToolCall) ([]types.ToolResult, error)
}

// ToolStep answers the tool calls on the most recent assistant message.
type ToolStep struct {
	Dispatcher ToolDispatcher
}

// NewToolStep creates a tool-dispatch step.
func NewToolStep(dispatcher ToolDispatcher) *ToolStep {
	return &ToolStep{Dispatcher: dispatcher}
}

// Execute implements Executor. Calls that already have a result in the log
// are skipped, and a repeated call id is answered once. With nothing to answer it returns an empty slice.
func (s *ToolStep) Execute(ctx context.Context, messages []types.Message) ([]types.Message, error) {
	idx := lastAssistantIndex(messages)
	if idx < 0 || !messages[idx].HasToolCalls() {
		return []types.Message{}, nil
	}
	if s.Dispatcher == nil {
		return nil, types.NewConfigurationError("tool step has no dispatcher")
	}
	last := messages[idx]

	answered := make(map[string]bool)
	for _, m := range messages[idx+1:] {
		if m.Role == types.RoleTool {
			answered[m.ToolCallID] = true
		}
	}

	pending := make([]types.ToolCall, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		if !answered[call.ID] {
			pending = append(pending, call)
			answered[call.ID] = true
		}
	}
	if len(pending) == 0 {
		return []types.Message{}, nil
	}

	results, err := s.Dispatcher.Dispatch(ctx, pending)
	if err != nil {
		return nil, err
	}

	out := make([]types.Message, len(results))
	for i, r := range results {
		out[i] = r.ToMessage()
	}
	return out, nil
}

func lastAssistantIndex(messages []types.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleAssistant {
			return i
		}
	}
	return -1
}
