package dsl

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/types"
	"github.com/BaSui01/agentgraph/workflow"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// builtin variables resolved on every model call
var builtinVariables = map[string]func(time.Time) string{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"now":  func(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) },
}

func isBuiltinVariable(name string) bool {
	_, ok := builtinVariables[name]
	return ok
}

// Parser DSL 解析器
type Parser struct {
	// models 模型注册表（"" 为默认模型）
	models map[string]llm.Model
	// routers 命名路由器注册表
	routers    map[string]workflow.RouterFunc
	registry   *tools.Registry
	dispatcher workflow.ToolDispatcher
	variables  map[string]string
	clock      func() time.Time
	logger     *zap.Logger
}

// ParserOption 配置 Parser
type ParserOption func(*Parser)

// WithModel 注册命名模型，节点以 model: <name> 引用
func WithModel(name string, model llm.Model) ParserOption {
	return func(p *Parser) { p.models[name] = model }
}

// WithDispatcher 覆盖默认调度器（默认基于 registry 构建）
func WithDispatcher(d workflow.ToolDispatcher) ParserOption {
	return func(p *Parser) { p.dispatcher = d }
}

// WithVariables 覆盖变量默认值
func WithVariables(vars map[string]string) ParserOption {
	return func(p *Parser) {
		for k, v := range vars {
			p.variables[k] = v
		}
	}
}

// WithClock 设置 ${date}/${now} 使用的时钟
func WithClock(clock func() time.Time) ParserOption {
	return func(p *Parser) { p.clock = clock }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser 创建 DSL 解析器。model 是默认模型，registry 提供工具。
func NewParser(model llm.Model, registry *tools.Registry, opts ...ParserOption) *Parser {
	p := &Parser{
		models:    map[string]llm.Model{"": model},
		routers:   make(map[string]workflow.RouterFunc),
		registry:  registry,
		variables: make(map[string]string),
		clock:     time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = tools.NewRegistry(p.logger)
	}
	if p.dispatcher == nil {
		p.dispatcher = tools.NewDispatcher(p.registry, p.logger)
	}
	p.logger = p.logger.With(zap.String("component", "graph_dsl"))
	return p
}

// RegisterRouter 注册命名路由器，边以 router: <name> 引用
func (p *Parser) RegisterRouter(name string, fn workflow.RouterFunc) {
	p.routers[name] = fn
}

// Definition 是解析后的图定义
type Definition struct {
	DSL   *GraphDSL
	Graph *workflow.StateGraph
}

// Compile 编译图，DSL 中的 interrupt_before 与 max_steps 覆盖 cfg 中的对应项
func (d *Definition) Compile(cfg workflow.CompileConfig) (*workflow.CompiledGraph, error) {
	if len(d.DSL.InterruptBefore) > 0 {
		cfg.InterruptBefore = slices.Clone(d.DSL.InterruptBefore)
	}
	if d.DSL.MaxSteps > 0 {
		cfg.MaxSteps = d.DSL.MaxSteps
	}
	return d.Graph.Compile(cfg)
}

// ParseFile 从文件解析 DSL
func (p *Parser) ParseFile(filename string) (*Definition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read DSL file: %w", err)
	}
	return p.Parse(data)
}

// Parse 从 YAML 字节解析 DSL
func (p *Parser) Parse(data []byte) (*Definition, error) {
	var dsl GraphDSL
	if err := yaml.Unmarshal(data, &dsl); err != nil {
		return nil, types.NewConfigurationError("parse YAML: %v", err).WithCause(err)
	}

	// 1. 验证 DSL
	if err := p.validate(&dsl); err != nil {
		return nil, err
	}

	// 2. 解析变量，构建插值上下文
	vars := p.resolveVariables(dsl.Variables)

	// 3. 构建 StateGraph
	graph, err := p.buildGraph(&dsl, vars)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("graph parsed",
		zap.String("graph", dsl.Name),
		zap.Int("nodes", len(dsl.Nodes)),
		zap.Int("edges", len(dsl.Edges)))
	return &Definition{DSL: &dsl, Graph: graph}, nil
}

// validate 结构校验与引用校验，一次报告全部问题
func (p *Parser) validate(dsl *GraphDSL) error {
	names := make([]string, 0, len(p.routers))
	for name := range p.routers {
		names = append(names, name)
	}
	errs := NewValidator(names...).Validate(dsl)
	errs = append(errs, p.validateReferences(dsl)...)
	if len(errs) == 0 {
		return nil
	}

	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return types.NewConfigurationError("graph DSL %q: %s", dsl.Name, strings.Join(msgs, "; ")).
		WithDetail("problems", msgs)
}

// validateReferences 校验模型与工具引用
func (p *Parser) validateReferences(dsl *GraphDSL) []error {
	var errs []error
	for _, node := range dsl.Nodes {
		if node.Type != NodeTypeModel {
			continue
		}
		if model, ok := p.models[node.Model]; !ok || model == nil {
			if node.Model == "" {
				errs = append(errs, fmt.Errorf("node %s: no default model configured", node.Name))
			} else {
				errs = append(errs, fmt.Errorf("node %s: model %q not registered", node.Name, node.Model))
			}
		}
		for _, name := range node.Tools {
			if name != "*" && !p.registry.Has(name) {
				errs = append(errs, fmt.Errorf("node %s: tool %q not registered", node.Name, name))
			}
		}
	}
	for name := range dsl.Variables {
		def := dsl.Variables[name]
		if _, set := p.variables[name]; def.Required && !set {
			errs = append(errs, fmt.Errorf("variable %q is required", name))
		}
	}
	return errs
}

// resolveVariables 解析变量默认值与覆盖值
func (p *Parser) resolveVariables(defs map[string]VariableDef) map[string]string {
	vars := make(map[string]string, len(defs))
	for name, def := range defs {
		vars[name] = def.Default
	}
	for name, value := range p.variables {
		vars[name] = value
	}
	return vars
}

// interpolate 变量插值（替换 ${var_name}）
func (p *Parser) interpolate(template string, vars map[string]string) string {
	result := template
	for name, value := range vars {
		result = strings.ReplaceAll(result, "${"+name+"}", value)
	}
	return result
}

func (p *Parser) interpolateBuiltins(template string) string {
	now := p.clock()
	result := template
	for name, fn := range builtinVariables {
		placeholder := "${" + name + "}"
		if strings.Contains(result, placeholder) {
			result = strings.ReplaceAll(result, placeholder, fn(now))
		}
	}
	return result
}

func hasBuiltinRefs(template string) bool {
	for _, ref := range extractVariableRefs(template) {
		if isBuiltinVariable(ref) {
			return true
		}
	}
	return false
}

// buildGraph 从 DSL 构建 StateGraph
func (p *Parser) buildGraph(dsl *GraphDSL, vars map[string]string) (*workflow.StateGraph, error) {
	graph := workflow.NewStateGraph(dsl.Name)

	for _, def := range dsl.Nodes {
		executor := p.buildNode(&def, dsl, vars)
		graph.AddNode(def.Name, executor)
	}
	graph.SetEntryPoint(dsl.Entry)

	for i, edge := range dsl.Edges {
		if !edge.conditional() {
			graph.AddEdge(edge.From, edge.To)
			continue
		}
		router, targets, err := p.buildRouter(&edge)
		if err != nil {
			return nil, types.NewConfigurationError("edge %d (%s): %v", i, edge.From, err).WithCause(err)
		}
		graph.AddConditionalEdges(edge.From, router, targets)
	}
	return graph, nil
}

// buildNode 构建单个节点
func (p *Parser) buildNode(def *NodeDef, dsl *GraphDSL, vars map[string]string) workflow.Executor {
	if def.Type == NodeTypeTools {
		return workflow.NewToolStep(p.dispatcher)
	}

	persona := def.Persona
	if named, ok := dsl.Personas[persona]; ok {
		persona = named
	}
	persona = p.interpolate(persona, vars)

	step := workflow.NewModelStep(def.Name, persona, p.models[def.Model], p.toolSchemas(def.Tools))
	if hasBuiltinRefs(persona) {
		step.PersonaFunc = func() string { return p.interpolateBuiltins(persona) }
	}
	return step
}

func (p *Parser) toolSchemas(names []string) []types.ToolSchema {
	if slices.Contains(names, "*") {
		return p.registry.Schemas()
	}
	schemas := make([]types.ToolSchema, 0, len(names))
	for _, name := range names {
		if tool, ok := p.registry.Get(name); ok {
			schemas = append(schemas, tool.Schema)
		}
	}
	return schemas
}

// buildRouter 构建条件边的路由器与声明目标
func (p *Parser) buildRouter(edge *EdgeDef) (workflow.RouterFunc, []string, error) {
	targets := slices.Clone(edge.Targets)

	if len(edge.Routes) > 0 {
		routes := make([]compiledRoute, len(edge.Routes))
		for i, r := range edge.Routes {
			prg, err := compileCondition(r.When)
			if err != nil {
				return nil, nil, err
			}
			routes[i] = compiledRoute{when: r.When, to: r.To, program: prg}
			targets = appendTarget(targets, r.To)
		}
		fallback := edge.Default
		if fallback == "" {
			fallback = workflow.End
		}
		targets = appendTarget(targets, fallback)
		if len(targets) == 0 {
			targets = []string{workflow.End}
		}
		return expressionRouter(routes, fallback), targets, nil
	}

	switch edge.Router {
	case RouterToolsCondition:
		return workflow.ToolsCondition(edge.Targets[0]), targets, nil

	case RouterReflection:
		bound := workflow.ReflectionBound{
			ToolsNode:   edge.Bound.Tools,
			ReflectNode: edge.Bound.Reflect,
			Rounds:      edge.Bound.Rounds,
			RoundSize:   edge.Bound.RoundSize,
			Mode:        workflow.BoundMode(edge.Bound.Mode),
		}
		if err := bound.Validate(); err != nil {
			return nil, nil, err
		}
		targets = appendTarget(targets, bound.ToolsNode)
		targets = appendTarget(targets, bound.ReflectNode)
		return workflow.ReflectionRouter(bound), targets, nil

	default:
		fn, ok := p.routers[edge.Router]
		if !ok {
			return nil, nil, fmt.Errorf("unknown router %q", edge.Router)
		}
		if len(targets) == 0 {
			return nil, nil, fmt.Errorf("router %q requires targets", edge.Router)
		}
		return fn, targets, nil
	}
}

func appendTarget(targets []string, t string) []string {
	if t == workflow.End || slices.Contains(targets, t) {
		return targets
	}
	return append(targets, t)
}
