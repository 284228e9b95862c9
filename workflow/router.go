package workflow

import "github.com/BaSui01/agentgraph/types"

// Start and End are the pseudo-nodes naming the entry edge and the terminal
// state.
const (
	Start = "__start__"
	End   = "__end__"
)

// RouterFunc decides the next node from the post-merge log. It must be
// deterministic given the log and return End or one of the targets declared
// with AddConditionalEdges.
type RouterFunc func(messages []types.Message) (string, error)

func lastHasToolCalls(messages []types.Message) bool {
	last, ok := types.LastMessage(messages)
	return ok && last.HasToolCalls()
}

// ToolsCondition routes to toolsNode while the last message requests tools,
// and to End otherwise.
func ToolsCondition(toolsNode string) RouterFunc {
	return func(messages []types.Message) (string, error) {
		if lastHasToolCalls(messages) {
			return toolsNode, nil
		}
		return End, nil
	}
}

// BoundMode selects how ReflectionRouter counts progress.
type BoundMode string

const (
	// BoundRounds counts messages produced by the reflect node.
	BoundRounds BoundMode = "rounds"
	// BoundMessages compares the log length against Rounds*RoundSize.
	BoundMessages BoundMode = "messages"
)

// DefaultRoundSize is the number of messages one Generate/Reflect round is
// expected to add under BoundMessages.
const DefaultRoundSize = 3

// ReflectionBound configures ReflectionRouter.
type ReflectionBound struct {
	ToolsNode   string
	ReflectNode string
	Rounds      int
	RoundSize   int       // BoundMessages only; 0 means DefaultRoundSize
	Mode        BoundMode // "" means BoundRounds
}

// Validate checks the bound configuration.
func (b ReflectionBound) Validate() error {
	if b.ToolsNode == "" || b.ReflectNode == "" {
		return types.NewConfigurationError("reflection bound needs tools and reflect nodes")
	}
	if b.Rounds < 0 {
		return types.NewConfigurationError("reflection rounds must not be negative, got %d", b.Rounds)
	}
	switch b.Mode {
	case "", BoundRounds, BoundMessages:
	default:
		return types.NewConfigurationError("unknown bound mode %q", b.Mode)
	}
	return nil
}

// Limit returns the log length bound under BoundMessages.
func (b ReflectionBound) Limit() int {
	size := b.RoundSize
	if size <= 0 {
		size = DefaultRoundSize
	}
	return b.Rounds * size
}

// ReflectionsDone counts the messages in the log produced by the reflect node.
func (b ReflectionBound) ReflectionsDone(messages []types.Message) int {
	n := 0
	for _, m := range messages {
		if m.Node == b.ReflectNode && m.Role == types.RoleAssistant {
			n++
		}
	}
	return n
}

// Exhausted reports whether no further reflection round is allowed.
func (b ReflectionBound) Exhausted(messages []types.Message) bool {
	if b.Mode == BoundMessages {
		return len(messages) >= b.Limit()
	}
	return b.ReflectionsDone(messages) >= b.Rounds
}

// ReflectionRouter routes to the tools node while tools are requested, then
// to the reflect node until the bound is reached, then to End. The counter
// is derived from the log on every call.
func ReflectionRouter(bound ReflectionBound) RouterFunc {
	return func(messages []types.Message) (string, error) {
		if lastHasToolCalls(messages) {
			return bound.ToolsNode, nil
		}
		if !bound.Exhausted(messages) {
			return bound.ReflectNode, nil
		}
		return End, nil
	}
}
