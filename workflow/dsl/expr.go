package dsl

import (
	"fmt"

	"github.com/BaSui01/agentgraph/types"
	"github.com/BaSui01/agentgraph/workflow"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RouteEnv is the environment a route expression sees. It is rebuilt from
// the log on every evaluation.
//
//	tool_calls > 0
//	rounds["reflect"] < 3 && length < 12
//	last.role == "assistant" && last.content contains "APPROVED"
type RouteEnv struct {
	Last     RouteMessage   `expr:"last"`
	Messages []RouteMessage `expr:"messages"`
	Length   int            `expr:"length"`
	// Rounds counts assistant messages per producing node.
	Rounds    map[string]int `expr:"rounds"`
	ToolCalls int            `expr:"tool_calls"`
}

// RouteMessage is the expression view of a message.
type RouteMessage struct {
	ID        string   `expr:"id"`
	Role      string   `expr:"role"`
	Content   string   `expr:"content"`
	Name      string   `expr:"name"`
	Node      string   `expr:"node"`
	ToolCalls []string `expr:"tool_calls"` // called tool names
	IsError   bool     `expr:"is_error"`
}

func toRouteMessage(m types.Message) RouteMessage {
	names := make([]string, len(m.ToolCalls))
	for i, c := range m.ToolCalls {
		names[i] = c.Name
	}
	return RouteMessage{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Name:      m.Name,
		Node:      m.Node,
		ToolCalls: names,
		IsError:   m.IsError,
	}
}

// NewRouteEnv builds the expression environment for a log.
func NewRouteEnv(messages []types.Message) RouteEnv {
	env := RouteEnv{
		Messages: make([]RouteMessage, len(messages)),
		Length:   len(messages),
		Rounds:   make(map[string]int),
	}
	for i, m := range messages {
		env.Messages[i] = toRouteMessage(m)
		if m.Role == types.RoleAssistant && m.Node != "" {
			env.Rounds[m.Node]++
		}
	}
	if last, ok := types.LastMessage(messages); ok {
		env.Last = toRouteMessage(last)
		env.ToolCalls = len(last.ToolCalls)
	}
	return env
}

type compiledRoute struct {
	when    string
	to      string
	program *vm.Program
}

// compileCondition type-checks a route expression against RouteEnv.
func compileCondition(when string) (*vm.Program, error) {
	if when == "" {
		return nil, fmt.Errorf("empty route expression")
	}
	prg, err := expr.Compile(when, expr.Env(RouteEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile route expression %q: %w", when, err)
	}
	return prg, nil
}

// EvaluateCondition compiles and evaluates one expression against a log.
func EvaluateCondition(when string, messages []types.Message) (bool, error) {
	prg, err := compileCondition(when)
	if err != nil {
		return false, err
	}
	return runCondition(prg, when, NewRouteEnv(messages))
}

func runCondition(prg *vm.Program, when string, env RouteEnv) (bool, error) {
	out, err := expr.Run(prg, env)
	if err != nil {
		return false, fmt.Errorf("evaluate route expression %q: %w", when, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// expressionRouter returns the target of the first route whose expression
// holds, or fallback.
func expressionRouter(routes []compiledRoute, fallback string) workflow.RouterFunc {
	return func(messages []types.Message) (string, error) {
		env := NewRouteEnv(messages)
		for _, r := range routes {
			ok, err := runCondition(r.program, r.when, env)
			if err != nil {
				return "", err
			}
			if ok {
				return r.to, nil
			}
		}
		return fallback, nil
	}
}
