package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/testutil"
	"github.com/BaSui01/agentgraph/testutil/mocks"
	"github.com/BaSui01/agentgraph/types"
	"github.com/BaSui01/agentgraph/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func call(id, name, args string) types.ToolCall {
	return types.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func nodesOf(log []types.Message) []string {
	out := make([]string, 0, len(log))
	for _, m := range log {
		out = append(out, m.Node)
	}
	return out
}

func personasOf(model *mocks.ScriptedModel) []string {
	calls := model.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Persona
	}
	return out
}

type staticSearch []tools.SearchResult

func (s staticSearch) Search(context.Context, string, int) ([]tools.SearchResult, error) {
	return s, nil
}

func TestToolAgent_AnswersAfterTools(t *testing.T) {
	kit := mocks.NewToolKit().WithResult("web_search", []string{"sunny, 24C"})
	require.NoError(t, kit.Err())
	model := mocks.NewScriptedModel(
		mocks.CallTools(call("c1", "web_search", `{"query":"weather in Lisbon"}`)),
		mocks.Reply("It is sunny in Lisbon."),
	)

	g, err := NewToolAgent(model, kit.Dispatcher(), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	assert.Equal(t, ToolAgentGraph, g.Name())
	assert.Equal(t, NodeCallModel, g.Entry())

	state, err := g.Run(testutil.TestContext(t), []types.Message{types.NewHumanMessage("weather in Lisbon?")})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusCompleted, state.Status)
	assert.Equal(t, 3, state.Steps)
	testutil.AssertRoles(t, []types.Role{types.RoleHuman, types.RoleAssistant, types.RoleTool, types.RoleAssistant}, state.Messages)
	assert.Equal(t, []string{"", NodeCallModel, NodeTools, NodeCallModel}, nodesOf(state.Messages))
	assert.Equal(t, "c1", state.Messages[2].ToolCallID)

	persona := AssistantPersona(fixedNow)
	assert.Equal(t, "You are a helpful assistant. The current date is 1792324800000.", persona)
	assert.Equal(t, []string{persona, persona}, personasOf(model))
	require.Len(t, model.Calls()[0].Tools, 1)
	assert.Equal(t, "web_search", model.Calls()[0].Tools[0].Name)
}

func TestToolAgent_WithSearchToolset(t *testing.T) {
	reg, err := SearchToolset(Backends{Search: staticSearch{{Title: "Lisbon", URL: "https://example.com", Content: "sunny"}}}, zap.NewNop())
	require.NoError(t, err)
	model := mocks.NewScriptedModel(
		mocks.CallTools(call("c1", "web_search", `{"query":"Lisbon"}`)),
		mocks.Reply("sunny"),
	)

	g, err := NewToolAgent(model, tools.NewDispatcher(reg, zap.NewNop()))
	require.NoError(t, err)

	state, err := g.Run(context.Background(), []types.Message{types.NewHumanMessage("Lisbon?")})
	require.NoError(t, err)
	toolMsg := state.Messages[2]
	assert.False(t, toolMsg.IsError)
	assert.Contains(t, toolMsg.Content, "https://example.com")
}

func TestReflectionAgent_BoundedRounds(t *testing.T) {
	kit := mocks.NewToolKit().WithResult("web_search", "results")
	model := mocks.NewScriptedModel(
		mocks.Reply("draft 1"),
		mocks.Reply("critique 1"),
		mocks.Reply("draft 2"),
		mocks.Reply("critique 2"),
		mocks.Reply("draft 3"),
	)

	g, err := NewReflectionAgent(model, kit.Dispatcher(), WithReflectionBound(2, workflow.BoundRounds, 0))
	require.NoError(t, err)

	state, err := g.Run(context.Background(), []types.Message{
		types.NewHumanMessage("Write an essay on why the little prince is relevant in modern childhood"),
	})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusCompleted, state.Status)
	assert.Equal(t, []string{"", NodeGenerate, NodeReflect, NodeGenerate, NodeReflect, NodeGenerate}, nodesOf(state.Messages))
	assert.Equal(t, "draft 3", state.Messages[len(state.Messages)-1].Content)
	assert.Equal(t, []string{WriterPersona, CriticPersona, WriterPersona, CriticPersona, WriterPersona}, personasOf(model))
	assert.Equal(t, 0, model.Remaining())
}

func TestReflectionAgent_DefaultBoundWithTools(t *testing.T) {
	kit := mocks.NewToolKit().WithResult("web_search", "facts")
	model := mocks.NewScriptedModel(
		mocks.CallTools(call("c1", "web_search", `{"query":"little prince"}`)),
	).WithFallback("text")

	g, err := NewReflectionAgent(model, kit.Dispatcher())
	require.NoError(t, err)

	state, err := g.Run(context.Background(), []types.Message{types.NewHumanMessage("essay")})
	require.NoError(t, err)

	reflections := 0
	for _, m := range state.Messages {
		if m.Node == NodeReflect {
			reflections++
		}
	}
	assert.Equal(t, DefaultReflectRounds, reflections)
	assert.Equal(t, 1, kit.CallCount("web_search"))
	// human, tool call, tool result, then draft/critique pairs and a final draft
	assert.Len(t, state.Messages, 3+2*DefaultReflectRounds+1)
}

func TestReflectionAgent_MessagesMode(t *testing.T) {
	kit := mocks.NewToolKit()
	model := mocks.NewScriptedModel().WithFallback("text")

	g, err := NewReflectionAgent(model, kit.Dispatcher(), WithReflectionBound(3, workflow.BoundMessages, 3))
	require.NoError(t, err)

	state, err := g.Run(context.Background(), []types.Message{types.NewHumanMessage("essay")})
	require.NoError(t, err)
	// the bound is checked after each draft: 8 messages still reflect, 10 end
	assert.Len(t, state.Messages, 10)
	assert.Equal(t, NodeGenerate, state.Messages[9].Node)
}

func TestReflectionAgent_InvalidBound(t *testing.T) {
	_, err := NewReflectionAgent(mocks.NewScriptedModel(), mocks.NewToolKit().Dispatcher(),
		WithReflectionBound(-1, workflow.BoundRounds, 0))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}

func TestKnowledgeCurator_EndsAfterResearch(t *testing.T) {
	kit := mocks.NewToolKit().WithResult("firecrawlScrape", []string{"premacar page"})
	model := mocks.NewScriptedModel(
		mocks.CallTools(call("c1", "firecrawlScrape", `{"url":"https://premacar.com.br/"}`)),
		mocks.Reply("A Premacar vende peças automotivas."),
	)

	g, err := NewKnowledgeCurator(model, kit.Dispatcher())
	require.NoError(t, err)

	state, err := g.Run(context.Background(), []types.Message{types.NewHumanMessage("analise o cliente")})
	require.NoError(t, err)

	assert.Equal(t, []string{"", NodeKnowledgeBase, NodeKnowledgeBaseTools, NodeKnowledgeBase}, nodesOf(state.Messages))
	assert.Equal(t, []string{KnowledgeBasePersona, KnowledgeBasePersona}, personasOf(model))
	assert.ElementsMatch(t, []string{NodeKnowledgeBaseTools, workflow.End}, g.Targets(NodeKnowledgeBase))
	assert.Equal(t, []string{NodeKnowledgeBase, NodeKnowledgeBaseTools}, g.Nodes())
}

func TestCurator_Standalone(t *testing.T) {
	kit := mocks.NewToolKit().WithResult("rssReader", []map[string]string{{"title": "Novo SUV"}})
	model := mocks.NewScriptedModel(
		mocks.CallTools(call("c1", "rssReader", `{"feedUrl":"https://www.flatout.com.br/feed"}`)),
		mocks.Reply("Notícia relevante: Novo SUV"),
	)

	g, err := NewCurator(model, kit.Dispatcher(), WithFeeds("https://www.flatout.com.br/feed"))
	require.NoError(t, err)
	assert.Equal(t, CuratorGraph, g.Name())
	assert.Equal(t, NodeCurate, g.Entry())
	assert.Equal(t, []string{NodeCurate, NodeCurateTools}, g.Nodes())

	// 以 KnowledgeBase 阶段的结论作为输入
	research := []types.Message{
		types.NewHumanMessage("curadoria"),
		types.NewAssistantMessage("perfil do cliente: peças automotivas"),
	}
	state, err := g.Run(context.Background(), research)
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusCompleted, state.Status)
	assert.Equal(t, []string{"", "", NodeCurate, NodeCurateTools, NodeCurate}, nodesOf(state.Messages))
	assert.Equal(t, "Notícia relevante: Novo SUV", state.Messages[4].Content)

	personas := personasOf(model)
	require.Len(t, personas, 2)
	assert.Contains(t, personas[0], "- https://www.flatout.com.br/feed\n")
	assert.Equal(t, 1, kit.CallCount("rssReader"))
}

func TestKnowledgeCurator_Handoff(t *testing.T) {
	kit := mocks.NewToolKit().WithResult("rssReader", []map[string]string{{"title": "Novo SUV"}})
	model := mocks.NewScriptedModel(
		mocks.Reply("perfil do cliente"),
		mocks.CallTools(call("c1", "rssReader", `{"feedUrl":"https://www.flatout.com.br/feed"}`)),
		mocks.Reply("Notícia relevante: Novo SUV"),
	)

	g, err := NewKnowledgeCurator(model, kit.Dispatcher(), WithHandoff(), WithFeeds("https://www.flatout.com.br/feed"))
	require.NoError(t, err)

	state, err := g.Run(context.Background(), []types.Message{types.NewHumanMessage("curadoria")})
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusCompleted, state.Status)
	assert.Equal(t, []string{"", NodeKnowledgeBase, NodeCurate, NodeCurateTools, NodeCurate}, nodesOf(state.Messages))

	personas := personasOf(model)
	require.Len(t, personas, 3)
	assert.Equal(t, KnowledgeBasePersona, personas[0])
	assert.Contains(t, personas[1], "- https://www.flatout.com.br/feed\n")
	assert.NotContains(t, personas[1], "motor1")
	assert.Equal(t, 1, kit.CallCount("rssReader"))
}

func TestPresets_PersonaAndModelOverrides(t *testing.T) {
	writer := mocks.NewScriptedModel().WithFallback("draft")
	critic := mocks.NewScriptedModel().WithFallback("critique")

	g, err := NewReflectionAgent(writer, mocks.NewToolKit().Dispatcher(),
		WithReflectionBound(1, workflow.BoundRounds, 0),
		WithNodeModel(NodeReflect, critic),
		WithPersona(NodeGenerate, "Write haiku."),
	)
	require.NoError(t, err)

	_, err = g.Run(context.Background(), []types.Message{types.NewHumanMessage("autumn")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Write haiku.", "Write haiku."}, personasOf(writer))
	assert.Equal(t, []string{CriticPersona}, personasOf(critic))
}

func TestPresets_CompileConfigInterrupts(t *testing.T) {
	kit := mocks.NewToolKit().WithResult("web_search", "ok")
	model := mocks.NewScriptedModel(
		mocks.CallTools(call("c1", "web_search", `{"query":"x"}`)),
		mocks.Reply("done"),
	)

	g, err := NewToolAgent(model, kit.Dispatcher(), WithCompileConfig(workflow.CompileConfig{
		InterruptBefore: []string{NodeTools},
	}))
	require.NoError(t, err)

	paused, err := g.Run(context.Background(), []types.Message{types.NewHumanMessage("x?")})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusInterrupted, paused.Status)
	assert.Equal(t, NodeTools, paused.Next)
	assert.Equal(t, 0, kit.CallCount("web_search"))

	final, err := g.Resume(context.Background(), paused)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, final.Status)
	assert.Equal(t, 1, kit.CallCount("web_search"))
}

func TestCuratePersona(t *testing.T) {
	p := CuratePersona(DefaultFeeds)
	for _, feed := range DefaultFeeds {
		assert.Contains(t, p, "- "+feed+"\n")
	}
	assert.True(t, strings.HasPrefix(p, "Passo 1."))
	assert.True(t, strings.HasSuffix(p, "Faça um por vez."))
}

func TestToolsets(t *testing.T) {
	search, err := SearchToolset(Backends{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"web_search"}, search.Names())

	curation, err := CurationToolset(Backends{Timeout: time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"firecrawlCrawl", "firecrawlScrape", "rssReader"}, curation.Names())

	// 未配置后端时工具返回错误结果而不是中断运行
	results, err := tools.NewDispatcher(curation, nil).Dispatch(context.Background(), []types.ToolCall{
		call("c1", "rssReader", `{"feedUrl":"https://www.flatout.com.br/feed"}`),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError())
}
