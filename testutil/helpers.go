// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertRoles(t, []types.Role{types.RoleHuman, types.RoleAssistant}, log)
//	testutil.AssertUniqueIDs(t, state.Messages)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/agentgraph/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertRoles 断言日志的角色序列
func AssertRoles(t *testing.T, expected []types.Role, log []types.Message) {
	t.Helper()

	actual := make([]types.Role, len(log))
	for i, m := range log {
		actual[i] = m.Role
	}
	if len(expected) != len(actual) {
		t.Errorf("role sequence mismatch:\nexpected: %v\nactual:   %v", expected, actual)
		return
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Errorf("role sequence mismatch at %d:\nexpected: %v\nactual:   %v", i, expected, actual)
			return
		}
	}
}

// AssertUniqueIDs 断言日志中的消息 ID 唯一
func AssertUniqueIDs(t *testing.T, log []types.Message) {
	t.Helper()

	seen := make(map[string]int, len(log))
	for i, m := range log {
		if prev, ok := seen[m.ID]; ok {
			t.Errorf("duplicate message id %q at %d and %d", m.ID, prev, i)
		}
		seen[m.ID] = i
	}
}

// =============================================================================
// 📦 数据辅助
// =============================================================================

// MustJSON 序列化为 json.RawMessage，失败时 panic
func MustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
