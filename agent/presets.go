package agent

import (
	"time"

	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/types"
	"github.com/BaSui01/agentgraph/workflow"
)

// Graph names.
const (
	ToolAgentGraph        = "tool-agent"
	ReflectionAgentGraph  = "reflection-agent"
	KnowledgeCuratorGraph = "knowledge-curator"
	CuratorGraph          = "curator"
)

// Node names.
const (
	NodeCallModel          = "callModel"
	NodeTools              = "tools"
	NodeGenerate           = "Generate"
	NodeReflect            = "Reflect"
	NodeKnowledgeBase      = "KnowledgeBase"
	NodeKnowledgeBaseTools = "toolsKnowledgeBase"
	NodeCurate             = "Curate"
	NodeCurateTools        = "toolsCurate"
)

// DefaultReflectRounds is the reflection bound used when none is configured.
const DefaultReflectRounds = 3

// Option customizes a preset.
type Option func(*options)

type options struct {
	compile   workflow.CompileConfig
	personas  map[string]string
	models    map[string]llm.Model
	clock     func() time.Time
	rounds    int
	roundSize int
	mode      workflow.BoundMode
	handoff   bool
	feeds     []string
}

func newOptions(opts []Option) *options {
	o := &options{
		personas: make(map[string]string),
		models:   make(map[string]llm.Model),
		clock:    time.Now,
		rounds:   DefaultReflectRounds,
		mode:     workflow.BoundRounds,
		feeds:    DefaultFeeds,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCompileConfig sets interrupts, step limit, checkpointer and
// observability hooks for the compiled graph.
func WithCompileConfig(cfg workflow.CompileConfig) Option {
	return func(o *options) { o.compile = cfg }
}

// WithPersona replaces the default persona of a model node.
func WithPersona(node, persona string) Option {
	return func(o *options) { o.personas[node] = persona }
}

// WithNodeModel gives one node its own model instead of the shared one.
func WithNodeModel(node string, model llm.Model) Option {
	return func(o *options) { o.models[node] = model }
}

// WithClock sets the clock used to render the assistant persona date.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithReflectionBound configures how many critique rounds the reflection
// agent runs. roundSize is only used by workflow.BoundMessages.
func WithReflectionBound(rounds int, mode workflow.BoundMode, roundSize int) Option {
	return func(o *options) {
		o.rounds = rounds
		o.mode = mode
		o.roundSize = roundSize
	}
}

// WithHandoff makes KnowledgeBase hand over to Curate instead of ending.
func WithHandoff() Option {
	return func(o *options) { o.handoff = true }
}

// WithFeeds replaces the feed list rendered into the Curate persona.
func WithFeeds(feeds ...string) Option {
	return func(o *options) { o.feeds = feeds }
}

func (o *options) modelStep(node string, model llm.Model, schemas []types.ToolSchema, persona func() string) *workflow.ModelStep {
	if m, ok := o.models[node]; ok {
		model = m
	}
	step := workflow.NewModelStep(node, "", model, schemas)
	if p, ok := o.personas[node]; ok {
		step.Persona = p
	} else {
		step.PersonaFunc = persona
	}
	return step
}

func fixed(persona string) func() string {
	return func() string { return persona }
}

// NewToolAgent builds the callModel/tools loop: the model answers or
// requests tools, tool results go back to the model.
func NewToolAgent(model llm.Model, dispatcher *tools.Dispatcher, opts ...Option) (*workflow.CompiledGraph, error) {
	o := newOptions(opts)
	schemas := dispatcher.Registry().Schemas()

	g := workflow.NewStateGraph(ToolAgentGraph)
	g.AddNode(NodeCallModel, o.modelStep(NodeCallModel, model, schemas, func() string {
		return AssistantPersona(o.clock())
	}))
	g.AddNode(NodeTools, workflow.NewToolStep(dispatcher))
	g.SetEntryPoint(NodeCallModel)
	g.AddConditionalEdges(NodeCallModel, workflow.ToolsCondition(NodeTools), []string{NodeTools, workflow.End})
	g.AddEdge(NodeTools, NodeCallModel)

	return g.Compile(o.compile)
}

// NewReflectionAgent builds the Generate/Reflect loop. Generate may call
// tools; after each draft the critic runs until the reflection bound is
// reached.
func NewReflectionAgent(model llm.Model, dispatcher *tools.Dispatcher, opts ...Option) (*workflow.CompiledGraph, error) {
	o := newOptions(opts)
	schemas := dispatcher.Registry().Schemas()

	bound := workflow.ReflectionBound{
		ToolsNode:   NodeTools,
		ReflectNode: NodeReflect,
		Rounds:      o.rounds,
		RoundSize:   o.roundSize,
		Mode:        o.mode,
	}
	if err := bound.Validate(); err != nil {
		return nil, err
	}

	g := workflow.NewStateGraph(ReflectionAgentGraph)
	g.AddNode(NodeGenerate, o.modelStep(NodeGenerate, model, schemas, fixed(WriterPersona)))
	g.AddNode(NodeReflect, o.modelStep(NodeReflect, model, schemas, fixed(CriticPersona)))
	g.AddNode(NodeTools, workflow.NewToolStep(dispatcher))
	g.SetEntryPoint(NodeGenerate)
	g.AddConditionalEdges(NodeGenerate, workflow.ReflectionRouter(bound),
		[]string{NodeTools, NodeReflect, workflow.End})
	g.AddEdge(NodeReflect, NodeGenerate)
	g.AddEdge(NodeTools, NodeGenerate)

	return g.Compile(o.compile)
}

// NewKnowledgeCurator builds the KnowledgeBase stage, which loops with its
// own tool node. Without WithHandoff the graph holds only that stage and the
// run ends after KnowledgeBase; NewCurator builds the Curate stage on its own.
// With WithHandoff both stages are chained into one graph.
func NewKnowledgeCurator(model llm.Model, dispatcher *tools.Dispatcher, opts ...Option) (*workflow.CompiledGraph, error) {
	o := newOptions(opts)
	schemas := dispatcher.Registry().Schemas()

	afterResearch := workflow.End
	if o.handoff {
		afterResearch = NodeCurate
	}
	researchRouter := func(messages []types.Message) (string, error) {
		if last, ok := types.LastMessage(messages); ok && last.HasToolCalls() {
			return NodeKnowledgeBaseTools, nil
		}
		return afterResearch, nil
	}

	g := workflow.NewStateGraph(KnowledgeCuratorGraph)
	g.AddNode(NodeKnowledgeBase, o.modelStep(NodeKnowledgeBase, model, schemas, fixed(KnowledgeBasePersona)))
	g.AddNode(NodeKnowledgeBaseTools, workflow.NewToolStep(dispatcher))
	g.SetEntryPoint(NodeKnowledgeBase)
	g.AddConditionalEdges(NodeKnowledgeBase, researchRouter, []string{NodeKnowledgeBaseTools, afterResearch})
	g.AddEdge(NodeKnowledgeBaseTools, NodeKnowledgeBase)
	if o.handoff {
		o.addCurateStage(g, model, dispatcher, schemas)
	}

	return g.Compile(o.compile)
}

// NewCurator builds the Curate stage as a graph of its own. It is usually run
// on the transcript a KnowledgeBase run produced.
func NewCurator(model llm.Model, dispatcher *tools.Dispatcher, opts ...Option) (*workflow.CompiledGraph, error) {
	o := newOptions(opts)
	g := workflow.NewStateGraph(CuratorGraph)
	o.addCurateStage(g, model, dispatcher, dispatcher.Registry().Schemas())
	g.SetEntryPoint(NodeCurate)
	return g.Compile(o.compile)
}

func (o *options) addCurateStage(g *workflow.StateGraph, model llm.Model, dispatcher *tools.Dispatcher, schemas []types.ToolSchema) {
	g.AddNode(NodeCurate, o.modelStep(NodeCurate, model, schemas, fixed(CuratePersona(o.feeds))))
	g.AddNode(NodeCurateTools, workflow.NewToolStep(dispatcher))
	g.AddConditionalEdges(NodeCurate, workflow.ToolsCondition(NodeCurateTools), []string{NodeCurateTools})
	g.AddEdge(NodeCurateTools, NodeCurate)
}
