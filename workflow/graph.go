package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BaSui01/agentgraph/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxSteps is the node execution ceiling of one Run or Resume call.
const DefaultMaxSteps = 25

type branch struct {
	router   RouterFunc
	targets  []string
	declared map[string]bool
}

// StateGraph builds a graph of named nodes over the message log. Builder
// methods record problems instead of failing; Compile reports all of them.
type StateGraph struct {
	name     string
	nodes    map[string]Executor
	order    []string
	edges    map[string]string
	branches map[string]*branch
	entry    string
	errs     []string
}

// NewStateGraph creates an empty graph.
func NewStateGraph(name string) *StateGraph {
	return &StateGraph{
		name:     name,
		nodes:    make(map[string]Executor),
		edges:    make(map[string]string),
		branches: make(map[string]*branch),
	}
}

func (g *StateGraph) errorf(format string, args ...any) {
	g.errs = append(g.errs, fmt.Sprintf(format, args...))
}

// AddNode registers a node.
func (g *StateGraph) AddNode(name string, executor Executor) *StateGraph {
	switch {
	case name == "":
		g.errorf("node name is required")
	case name == Start || name == End:
		g.errorf("node name %q is reserved", name)
	case executor == nil:
		g.errorf("node %q has no executor", name)
	default:
		if _, exists := g.nodes[name]; exists {
			g.errorf("duplicate node %q", name)
			return g
		}
		g.nodes[name] = executor
		g.order = append(g.order, name)
	}
	return g
}

func (g *StateGraph) hasOutgoing(from string) bool {
	_, fixed := g.edges[from]
	_, cond := g.branches[from]
	return fixed || cond
}

// AddEdge adds a fixed transition. AddEdge(Start, x) sets the entry node.
func (g *StateGraph) AddEdge(from, to string) *StateGraph {
	if from == End {
		g.errorf("edge cannot leave %s", End)
		return g
	}
	if from == Start {
		if g.entry != "" {
			g.errorf("entry point already set to %q", g.entry)
			return g
		}
		g.entry = to
		return g
	}
	if g.hasOutgoing(from) {
		g.errorf("node %q already has an outgoing edge", from)
		return g
	}
	g.edges[from] = to
	return g
}

// SetEntryPoint is shorthand for AddEdge(Start, name).
func (g *StateGraph) SetEntryPoint(name string) *StateGraph {
	return g.AddEdge(Start, name)
}

// AddConditionalEdges routes out of from with router. The router may return
// End or any of targets; anything else fails the run with UNKNOWN_ROUTE.
func (g *StateGraph) AddConditionalEdges(from string, router RouterFunc, targets []string) *StateGraph {
	if from == Start || from == End {
		g.errorf("conditional edges cannot leave %s", from)
		return g
	}
	if router == nil {
		g.errorf("conditional edge from %q has no router", from)
		return g
	}
	if len(targets) == 0 {
		g.errorf("conditional edge from %q declares no targets", from)
		return g
	}
	if g.hasOutgoing(from) {
		g.errorf("node %q already has an outgoing edge", from)
		return g
	}
	b := &branch{router: router, targets: slices.Clone(targets), declared: make(map[string]bool, len(targets)+1)}
	for _, t := range targets {
		b.declared[t] = true
	}
	b.declared[End] = true
	g.branches[from] = b
	return g
}

// CompileConfig holds run-time options fixed at compile time.
type CompileConfig struct {
	// InterruptBefore pauses the run before executing these nodes.
	InterruptBefore []string
	// MaxSteps caps node executions per Run or Resume; 0 means DefaultMaxSteps.
	MaxSteps     int
	Logger       *zap.Logger
	Observer     Observer
	Tracer       trace.Tracer
	Checkpointer Checkpointer
}

// Compile validates the graph and freezes it. Every problem found is
// reported in one CONFIGURATION error.
func (g *StateGraph) Compile(cfg CompileConfig) (*CompiledGraph, error) {
	problems := slices.Clone(g.errs)
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	known := func(name string) bool {
		_, ok := g.nodes[name]
		return ok
	}

	if g.name == "" {
		add("graph name is required")
	}
	if g.entry == "" {
		add("entry point is not set")
	} else if !known(g.entry) {
		add("entry point %q is not a node", g.entry)
	}

	for _, name := range g.order {
		if !g.hasOutgoing(name) {
			add("node %q has no outgoing edge", name)
		}
	}
	for from, to := range g.edges {
		if !known(from) {
			add("edge source %q is not a node", from)
		}
		if to != End && !known(to) {
			add("edge %q -> %q targets an undeclared node", from, to)
		}
	}
	for from, b := range g.branches {
		if !known(from) {
			add("conditional edge source %q is not a node", from)
		}
		for _, t := range b.targets {
			if t != End && !known(t) {
				add("conditional edge %q -> %q targets an undeclared node", from, t)
			}
		}
	}

	interrupts := make(map[string]bool, len(cfg.InterruptBefore))
	for _, name := range cfg.InterruptBefore {
		if !known(name) {
			add("interrupt node %q is not a node", name)
		}
		interrupts[name] = true
	}

	if cfg.MaxSteps < 0 {
		add("max steps must not be negative, got %d", cfg.MaxSteps)
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return nil, types.NewConfigurationError("graph %q: %s", g.name, strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}

	maxSteps := cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/BaSui01/agentgraph/workflow")
	}

	cg := &CompiledGraph{
		name:         g.name,
		nodes:        make(map[string]Executor, len(g.nodes)),
		order:        slices.Clone(g.order),
		edges:        make(map[string]string, len(g.edges)),
		branches:     make(map[string]*branch, len(g.branches)),
		entry:        g.entry,
		interrupts:   interrupts,
		maxSteps:     maxSteps,
		observer:     cfg.Observer,
		tracer:       tracer,
		checkpointer: cfg.Checkpointer,
		logger:       logger.With(zap.String("component", "graph"), zap.String("graph", g.name)),
	}
	for k, v := range g.nodes {
		cg.nodes[k] = v
	}
	for k, v := range g.edges {
		cg.edges[k] = v
	}
	for k, v := range g.branches {
		cg.branches[k] = v
	}
	return cg, nil
}
