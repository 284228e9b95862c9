package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/agentgraph/types"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ToolFunc defines the tool function signature.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// RateLimitConfig defines rate limit configuration.
type RateLimitConfig struct {
	MaxCalls int           // Maximum calls
	Window   time.Duration // Time window
}

// Tool is a uniform capability: schema plus invoke function.
type Tool struct {
	Schema    types.ToolSchema
	Func      ToolFunc
	Timeout   time.Duration    // 执行超时（0 使用注册中心默认值）
	RateLimit *RateLimitConfig // 可选
}

// DefaultToolTimeout is applied to tools registered without a timeout.
const DefaultToolTimeout = 30 * time.Second

type registeredTool struct {
	tool      Tool
	validator *jsonschema.Schema // nil when the tool declares no parameters
	limiter   *rate.Limiter
}

// Registry holds the tools bound to one graph. Registries are never shared
// between graphs; build one per tool set.
type Registry struct {
	mu             sync.RWMutex
	tools          map[string]*registeredTool
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultTimeout overrides DefaultToolTimeout for this registry.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		tools:          make(map[string]*registeredTool),
		defaultTimeout: DefaultToolTimeout,
		logger:         logger.With(zap.String("component", "tool_registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. The argument schema is compiled here so that a
// malformed schema fails at construction rather than on first call.
func (r *Registry) Register(tool Tool) error {
	name := tool.Schema.Name
	if name == "" {
		return types.NewConfigurationError("tool name is required")
	}
	if tool.Func == nil {
		return types.NewConfigurationError("tool %q has no function", name)
	}

	validator, err := compileArgumentSchema(name, tool.Schema.Parameters)
	if err != nil {
		return types.NewConfigurationError("tool %q has an invalid argument schema", name).WithCause(err)
	}

	if tool.Timeout <= 0 {
		tool.Timeout = r.defaultTimeout
	}

	entry := &registeredTool{tool: tool, validator: validator}
	if rl := tool.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		entry.limiter = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return types.NewConfigurationError("tool %q already registered", name)
	}
	r.tools[name] = entry

	r.logger.Debug("tool registered", zap.String("name", name), zap.Duration("timeout", tool.Timeout))
	return nil
}

// Unregister removes a tool.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return types.NewConfigurationError("tool %q not registered", name)
	}
	delete(r.tools, name)

	r.logger.Debug("tool unregistered", zap.String("name", name))
	return nil
}

// Get returns the registered tool with its effective timeout.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tools[name]
	if !ok {
		return Tool{}, false
	}
	return entry.tool, true
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the schemas offered to the model, sorted by name so the
// tool list in a prompt is stable.
func (r *Registry) Schemas() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]types.ToolSchema, 0, len(r.tools))
	for _, entry := range r.tools {
		schemas = append(schemas, entry.tool.Schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// lookup returns the internal entry; callers must not mutate it.
func (r *Registry) lookup(name string) (*registeredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	return entry, ok
}

// Validate checks args against the named tool's schema.
func (r *Registry) Validate(name string, args json.RawMessage) error {
	entry, ok := r.lookup(name)
	if !ok {
		return types.NewError(types.ErrToolValidation, "tool \""+name+"\" is not registered")
	}
	return entry.validate(args)
}

func (e *registeredTool) validate(args json.RawMessage) error {
	if e.validator == nil {
		return nil
	}
	return validateArguments(e.tool.Schema.Name, e.validator, args)
}

func (e *registeredTool) allow() bool {
	if e.limiter == nil {
		return true
	}
	return e.limiter.Allow()
}
