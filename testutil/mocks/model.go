// ScriptedModel 按脚本回放的模型能力模拟实现。
//
// 每次 Invoke 依次消费一个 Turn，用于驱动图引擎的确定性测试。
package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentgraph/types"
)

// ErrScriptExhausted is returned once every turn has been consumed and no
// fallback is configured.
var ErrScriptExhausted = errors.New("scripted model: script exhausted")

// Turn is one scripted model response.
type Turn struct {
	Message types.Message
	Err     error
}

// Reply is a plain assistant answer.
func Reply(content string) Turn {
	return Turn{Message: types.Message{Role: types.RoleAssistant, Content: content}}
}

// CallTools is an assistant message requesting tool calls.
func CallTools(calls ...types.ToolCall) Turn {
	return Turn{Message: types.Message{Role: types.RoleAssistant, ToolCalls: calls}}
}

// Fail makes the model return err.
func Fail(err error) Turn {
	return Turn{Err: err}
}

// ModelCall 记录单次调用
type ModelCall struct {
	Persona string
	History []types.Message
	Tools   []types.ToolSchema
}

// ScriptedModel implements llm.Model.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []Turn
	next     int
	fallback *Turn
	delay    time.Duration
	calls    []ModelCall
}

// NewScriptedModel 创建按顺序回放 turns 的模型
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// WithFallback 脚本耗尽后返回的固定回复
func (m *ScriptedModel) WithFallback(content string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := Reply(content)
	m.fallback = &t
	return m
}

// WithDelay 设置每次调用的延迟
func (m *ScriptedModel) WithDelay(d time.Duration) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Invoke implements llm.Model.
func (m *ScriptedModel) Invoke(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error) {
	m.mu.Lock()
	call := ModelCall{
		Persona: persona,
		History: append([]types.Message(nil), history...),
		Tools:   append([]types.ToolSchema(nil), tools...),
	}
	m.calls = append(m.calls, call)

	var turn Turn
	switch {
	case m.next < len(m.turns):
		turn = m.turns[m.next]
		m.next++
	case m.fallback != nil:
		turn = *m.fallback
	default:
		m.mu.Unlock()
		return types.Message{}, fmt.Errorf("%w after %d calls", ErrScriptExhausted, len(m.calls)-1)
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.Message{}, ctx.Err()
		}
	}

	if turn.Err != nil {
		return types.Message{}, turn.Err
	}

	msg := turn.Message.Clone()
	if msg.ID == "" {
		msg.ID = types.NewMessageID()
	}
	msg.Timestamp = time.Now()
	return msg, nil
}

// Calls 返回所有调用记录
func (m *ScriptedModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelCall(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Remaining 返回未消费的脚本条数
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns) - m.next
}
