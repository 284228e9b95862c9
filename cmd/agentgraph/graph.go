package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/agentgraph/agent"
	"github.com/BaSui01/agentgraph/internal/script"
	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/types"
	"github.com/BaSui01/agentgraph/workflow"
	"github.com/BaSui01/agentgraph/workflow/dsl"
)

// multiFlag 可重复的字符串参数
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// graphFlags run/resume/validate 共用的参数
type graphFlags struct {
	configPath string
	graphPath  string
	preset     string
	scriptPath string
	vars       multiFlag
	interrupts multiFlag
	handoff    bool
	trace      bool
	jsonOut    bool
}

func (f *graphFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.graphPath, "graph", "", "Graph definition (YAML DSL)")
	fs.StringVar(&f.preset, "preset", "", "Built-in graph: tool-agent, reflection-agent, knowledge-curator")
	fs.StringVar(&f.scriptPath, "script", "", "Scripted model turns and tools (YAML)")
	fs.Var(&f.vars, "var", "Graph variable override key=value (repeatable)")
	fs.Var(&f.interrupts, "interrupt", "Pause before this node (repeatable)")
	fs.BoolVar(&f.handoff, "handoff", false, "knowledge-curator: hand over from KnowledgeBase to Curate")
	fs.BoolVar(&f.trace, "trace", false, "Print node and route events to stderr")
	fs.BoolVar(&f.jsonOut, "json", false, "Print the final state as JSON")
}

func (f *graphFlags) source() error {
	switch {
	case f.graphPath == "" && f.preset == "":
		return errors.New("one of --graph or --preset is required")
	case f.graphPath != "" && f.preset != "":
		return errors.New("--graph and --preset are mutually exclusive")
	}
	return nil
}

func (f *graphFlags) variables() (map[string]string, error) {
	vars := make(map[string]string, len(f.vars))
	for _, kv := range f.vars {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", kv)
		}
		vars[key] = value
	}
	return vars, nil
}

// loadedGraph 编译好的图与驱动它的脚本
type loadedGraph struct {
	graph   *workflow.CompiledGraph
	fixture *script.Fixture
}

// buildGraph 从 DSL 或内置预设构建图，模型与工具来自脚本
func (a *app) buildGraph(f *graphFlags) (*loadedGraph, error) {
	if err := f.source(); err != nil {
		return nil, err
	}
	if f.scriptPath == "" {
		return nil, errors.New("--script is required")
	}
	fixture, err := script.Load(f.scriptPath)
	if err != nil {
		return nil, err
	}

	reg, err := fixture.Registry(a.logger, a.registryOptions()...)
	if err != nil {
		return nil, err
	}
	dispatcher := a.newDispatcher(reg)
	model := a.newModel(fixture.Provider())
	named := make(map[string]llm.Model, len(fixture.Models))
	for name, provider := range fixture.NamedProviders() {
		named[name] = a.newModel(provider)
	}
	compile := a.compileConfig(f.interrupts)

	var graph *workflow.CompiledGraph
	if f.preset != "" {
		graph, err = a.buildPreset(f, model, named, dispatcher, compile)
	} else {
		graph, err = a.buildDSL(f, model, named, reg, dispatcher, compile)
	}
	if err != nil {
		return nil, err
	}
	return &loadedGraph{graph: graph, fixture: fixture}, nil
}

func (a *app) buildPreset(f *graphFlags, model llm.Model, named map[string]llm.Model,
	dispatcher *tools.Dispatcher, compile workflow.CompileConfig) (*workflow.CompiledGraph, error) {
	opts := []agent.Option{agent.WithCompileConfig(compile)}
	// 脚本中的命名模型按节点名覆盖
	for node, m := range named {
		opts = append(opts, agent.WithNodeModel(node, m))
	}

	switch f.preset {
	case agent.ToolAgentGraph:
		return agent.NewToolAgent(model, dispatcher, opts...)
	case agent.ReflectionAgentGraph:
		engine := a.cfg.Engine
		opts = append(opts, agent.WithReflectionBound(engine.ReflectRounds, workflow.BoundMode(engine.BoundMode), engine.RoundSize))
		return agent.NewReflectionAgent(model, dispatcher, opts...)
	case agent.KnowledgeCuratorGraph:
		if f.handoff {
			opts = append(opts, agent.WithHandoff())
		}
		return agent.NewKnowledgeCurator(model, dispatcher, opts...)
	case agent.CuratorGraph:
		return agent.NewCurator(model, dispatcher, opts...)
	default:
		return nil, fmt.Errorf("unknown preset %q (available: %s, %s, %s, %s)", f.preset,
			agent.ToolAgentGraph, agent.ReflectionAgentGraph, agent.KnowledgeCuratorGraph, agent.CuratorGraph)
	}
}

func (a *app) buildDSL(f *graphFlags, model llm.Model, named map[string]llm.Model, reg *tools.Registry,
	dispatcher *tools.Dispatcher, compile workflow.CompileConfig) (*workflow.CompiledGraph, error) {
	vars, err := f.variables()
	if err != nil {
		return nil, err
	}
	opts := []dsl.ParserOption{
		dsl.WithDispatcher(dispatcher),
		dsl.WithVariables(vars),
		dsl.WithLogger(a.logger),
	}
	for name, m := range named {
		opts = append(opts, dsl.WithModel(name, m))
	}

	def, err := dsl.NewParser(model, reg, opts...).ParseFile(f.graphPath)
	if err != nil {
		return nil, err
	}
	return def.Compile(compile)
}

// =============================================================================
// ✅ 校验（无需脚本）
// =============================================================================

var errNoModel = errors.New("validation placeholder: no model available")

// validateGraph 解析并编译 DSL。未提供脚本时为引用到的模型与工具注册占位实现。
func validateGraph(path, scriptPath string, vars map[string]string, logger *zap.Logger) (*workflow.CompiledGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read DSL file: %w", err)
	}

	placeholder := llm.ModelFunc(func(context.Context, string, []types.Message, []types.ToolSchema) (types.Message, error) {
		return types.Message{}, errNoModel
	})

	var raw dsl.GraphDSL
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.NewConfigurationError("parse YAML: %v", err).WithCause(err)
	}
	opts := []dsl.ParserOption{dsl.WithVariables(vars), dsl.WithLogger(logger)}

	var reg *tools.Registry
	if scriptPath != "" {
		fixture, err := script.Load(scriptPath)
		if err != nil {
			return nil, err
		}
		if reg, err = fixture.Registry(logger); err != nil {
			return nil, err
		}
		for name := range fixture.Models {
			opts = append(opts, dsl.WithModel(name, placeholder))
		}
	} else {
		reg = tools.NewRegistry(logger)
		for _, node := range raw.Nodes {
			if node.Model != "" {
				opts = append(opts, dsl.WithModel(node.Model, placeholder))
			}
			for _, name := range node.Tools {
				if name == "*" || reg.Has(name) {
					continue
				}
				if err := reg.Register(tools.Tool{
					Schema: types.ToolSchema{Name: name, Description: "placeholder"},
					Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
						return nil, errNoModel
					},
				}); err != nil {
					return nil, err
				}
			}
		}
	}
	// 必填变量在校验时以占位值满足
	for name, def := range raw.Variables {
		if _, set := vars[name]; def.Required && !set {
			vars[name] = "<" + name + ">"
		}
	}

	def, err := dsl.NewParser(placeholder, reg, opts...).Parse(data)
	if err != nil {
		return nil, err
	}
	return def.Compile(workflow.CompileConfig{Logger: logger})
}
