// ToolKit 的工具注册中心测试模拟实现。
//
// 支持固定结果、错误注入与调用记录。
package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/types"
	"go.uber.org/zap"
)

// ToolInvocation 记录单次工具调用
type ToolInvocation struct {
	Name string
	Args json.RawMessage
}

// ToolKit builds a tools.Registry whose tools record every invocation.
type ToolKit struct {
	mu       sync.Mutex
	registry *tools.Registry
	calls    []ToolInvocation
	err      error
}

// NewToolKit 创建空的 ToolKit
func NewToolKit() *ToolKit {
	return &ToolKit{registry: tools.NewRegistry(zap.NewNop())}
}

func (k *ToolKit) record(name string, args json.RawMessage) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, ToolInvocation{Name: name, Args: append(json.RawMessage(nil), args...)})
}

func (k *ToolKit) register(name string, params json.RawMessage, fn tools.ToolFunc) *ToolKit {
	if params == nil {
		params = json.RawMessage(`{"type":"object"}`)
	}
	err := k.registry.Register(tools.Tool{
		Schema: types.ToolSchema{Name: name, Description: "Mock tool: " + name, Parameters: params},
		Func: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			k.record(name, args)
			return fn(ctx, args)
		},
	})
	if err != nil && k.err == nil {
		k.err = err
	}
	return k
}

// WithResult 注册返回固定结果的工具
func (k *ToolKit) WithResult(name string, result any) *ToolKit {
	raw, err := json.Marshal(result)
	return k.register(name, nil, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return raw, err
	})
}

// WithError 注册总是失败的工具
func (k *ToolKit) WithError(name string, toolErr error) *ToolKit {
	return k.register(name, nil, func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, toolErr
	})
}

// WithFunc 注册自定义工具
func (k *ToolKit) WithFunc(name string, params json.RawMessage, fn tools.ToolFunc) *ToolKit {
	return k.register(name, params, fn)
}

// Err 返回注册过程中的第一个错误
func (k *ToolKit) Err() error { return k.err }

// Registry 返回底层注册中心
func (k *ToolKit) Registry() *tools.Registry { return k.registry }

// Dispatcher 返回绑定到注册中心的调度器
func (k *ToolKit) Dispatcher() *tools.Dispatcher {
	return tools.NewDispatcher(k.registry, zap.NewNop())
}

// Calls 返回所有调用记录
func (k *ToolKit) Calls() []ToolInvocation {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]ToolInvocation(nil), k.calls...)
}

// CallCount 返回指定工具的调用次数
func (k *ToolKit) CallCount(name string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, c := range k.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}
