// Package script loads YAML fixtures that stand in for a model provider and a
// tool set, so graphs can be dry-run from the command line.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document read by Load.
//
//	input:
//	  - "Write an essay about electric cars"
//	turns:
//	  - tool_calls:
//	      - name: web_search
//	        arguments: {query: electric cars}
//	  - content: "Draft essay"
//	fallback: "Final essay"
//	tools:
//	  - name: web_search
//	    result: ["result one", "result two"]
type Fixture struct {
	// Input 作为初始 human 消息
	Input []string `yaml:"input"`
	// Turns 按顺序被模型调用消费
	Turns []Turn `yaml:"turns"`
	// Fallback 脚本耗尽后的固定回复；为空时耗尽即报错
	Fallback string `yaml:"fallback,omitempty"`
	// Models 命名模型的独立脚本，DSL 节点以 model: <name> 引用
	Models map[string]ModelScript `yaml:"models,omitempty"`
	Tools  []ToolDef              `yaml:"tools,omitempty"`
}

// ModelScript is the script of one named model.
type ModelScript struct {
	Turns    []Turn `yaml:"turns"`
	Fallback string `yaml:"fallback,omitempty"`
}

// Turn is one scripted model response. Exactly one of Content, ToolCalls or
// Error is normally set; Content and ToolCalls may be combined.
type Turn struct {
	Content   string    `yaml:"content,omitempty"`
	ToolCalls []CallDef `yaml:"tool_calls,omitempty"`
	Error     string    `yaml:"error,omitempty"`
	Retryable bool      `yaml:"retryable,omitempty"`
	Delay     Duration  `yaml:"delay,omitempty"`
}

// CallDef is a scripted tool call. A missing ID gets a generated one.
type CallDef struct {
	ID        string `yaml:"id,omitempty"`
	Name      string `yaml:"name"`
	Arguments any    `yaml:"arguments,omitempty"`
}

// ToolDef describes a fixture tool. Result is returned as JSON; Error makes
// every call fail instead.
type ToolDef struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
	Result      any            `yaml:"result,omitempty"`
	Error       string         `yaml:"error,omitempty"`
	Timeout     Duration       `yaml:"timeout,omitempty"`
}

// Duration decodes YAML strings such as "150ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a fixture.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, types.NewConfigurationError("parse script: %v", err).WithCause(err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	seen := make(map[string]bool, len(f.Tools))
	for i, t := range f.Tools {
		if t.Name == "" {
			return types.NewConfigurationError("script tool %d: name is required", i)
		}
		if seen[t.Name] {
			return types.NewConfigurationError("script tool %q declared twice", t.Name)
		}
		seen[t.Name] = true
	}
	check := func(owner string, turns []Turn) error {
		for i, turn := range turns {
			for _, call := range turn.ToolCalls {
				if call.Name == "" {
					return types.NewConfigurationError("%s turn %d: tool call without name", owner, i)
				}
			}
		}
		return nil
	}
	if err := check("script", f.Turns); err != nil {
		return err
	}
	for name, m := range f.Models {
		if err := check("model "+name, m.Turns); err != nil {
			return err
		}
	}
	return nil
}

// Messages returns the fixture input as human messages.
func (f *Fixture) Messages() []types.Message {
	out := make([]types.Message, 0, len(f.Input))
	for _, text := range f.Input {
		out = append(out, types.NewHumanMessage(text))
	}
	return out
}

// Provider returns the llm.Provider replaying the default script.
func (f *Fixture) Provider() *Provider {
	return NewProvider("script", f.Turns, f.Fallback)
}

// NamedProviders returns one provider per entry of Models.
func (f *Fixture) NamedProviders() map[string]*Provider {
	out := make(map[string]*Provider, len(f.Models))
	for name, m := range f.Models {
		out[name] = NewProvider("script:"+name, m.Turns, m.Fallback)
	}
	return out
}

// Registry registers every fixture tool.
func (f *Fixture) Registry(logger *zap.Logger, opts ...tools.RegistryOption) (*tools.Registry, error) {
	reg := tools.NewRegistry(logger, opts...)
	for _, def := range f.Tools {
		tool, err := def.tool()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (d ToolDef) tool() (tools.Tool, error) {
	var params json.RawMessage
	if d.Parameters != nil {
		raw, err := json.Marshal(d.Parameters)
		if err != nil {
			return tools.Tool{}, fmt.Errorf("tool %s: encode parameters: %w", d.Name, err)
		}
		params = raw
	}
	result, err := json.Marshal(d.Result)
	if err != nil {
		return tools.Tool{}, fmt.Errorf("tool %s: encode result: %w", d.Name, err)
	}
	description := d.Description
	if description == "" {
		description = "Scripted tool " + d.Name
	}
	failure := d.Error

	return tools.Tool{
		Schema: types.ToolSchema{Name: d.Name, Description: description, Parameters: params},
		Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			if failure != "" {
				return nil, errors.New(failure)
			}
			return result, nil
		},
		Timeout: time.Duration(d.Timeout),
	}, nil
}

// ErrExhausted is returned once a script without fallback has no turns left.
var ErrExhausted = errors.New("script exhausted")

// Provider replays scripted turns as chat completions.
type Provider struct {
	name     string
	mu       sync.Mutex
	turns    []Turn
	next     int
	fallback string
	requests []*llm.ChatRequest
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider creates a provider replaying turns in order.
func NewProvider(name string, turns []Turn, fallback string) *Provider {
	return &Provider{name: name, turns: turns, fallback: fallback}
}

func (p *Provider) Name() string { return p.name }

// Completion implements llm.Provider.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	var turn Turn
	switch {
	case p.next < len(p.turns):
		turn = p.turns[p.next]
		p.next++
	case p.fallback != "":
		turn = Turn{Content: p.fallback}
	default:
		p.mu.Unlock()
		return nil, types.NewError(types.ErrCapability, fmt.Sprintf("%s: %v", p.name, ErrExhausted)).WithCause(ErrExhausted)
	}
	p.mu.Unlock()

	if turn.Delay > 0 {
		select {
		case <-time.After(time.Duration(turn.Delay)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if turn.Error != "" {
		return nil, types.NewError(types.ErrCapability, turn.Error).WithRetryable(turn.Retryable)
	}

	msg := types.Message{Role: types.RoleAssistant, Content: turn.Content}
	for _, call := range turn.ToolCalls {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			return nil, fmt.Errorf("encode arguments of %s: %w", call.Name, err)
		}
		if call.Arguments == nil {
			args = json.RawMessage(`{}`)
		}
		id := call.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{ID: id, Name: call.Name, Arguments: args})
	}

	finish := "stop"
	if len(msg.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &llm.ChatResponse{
		ID:        uuid.NewString(),
		Provider:  p.name,
		Model:     req.Model,
		Choices:   []llm.ChatChoice{{Index: 0, FinishReason: finish, Message: msg}},
		CreatedAt: time.Now(),
	}, nil
}

// Requests returns the requests received so far.
func (p *Provider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// Remaining returns how many scripted turns are left.
func (p *Provider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.turns) - p.next
}
