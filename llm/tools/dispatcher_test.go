package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string][]string
}

func (o *recordingObserver) ObserveToolCall(tool, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string][]string)
	}
	o.calls[tool] = append(o.calls[tool], status)
}

func wikipediaTool(delays map[string]time.Duration) Tool {
	return Tool{
		Schema: types.ToolSchema{
			Name:       "search_wikipedia",
			Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		},
		Func: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			select {
			case <-time.After(delays[in.Query]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return json.Marshal("article about " + in.Query)
		},
	}
}

func newDispatcher(t *testing.T, tools ...Tool) *Dispatcher {
	t.Helper()
	reg := NewRegistry(zap.NewNop())
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	return NewDispatcher(reg, zap.NewNop())
}

func TestDispatcher_PreservesDeclarationOrder(t *testing.T) {
	// dogs completes first
	d := newDispatcher(t, wikipediaTool(map[string]time.Duration{
		"cats": 80 * time.Millisecond,
		"dogs": 5 * time.Millisecond,
	}))

	calls := []types.ToolCall{
		{ID: "1", Name: "search_wikipedia", Arguments: json.RawMessage(`{"query":"cats"}`)},
		{ID: "2", Name: "search_wikipedia", Arguments: json.RawMessage(`{"query":"dogs"}`)},
	}

	results, err := d.Dispatch(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "1", results[0].ToolCallID)
	assert.Equal(t, "2", results[1].ToolCallID)

	msgs := []types.Message{results[0].ToMessage(), results[1].ToMessage()}
	assert.Equal(t, "article about cats", msgs[0].Content)
	assert.Equal(t, "article about dogs", msgs[1].Content)
	assert.Equal(t, types.RoleTool, msgs[0].Role)
}

func TestDispatcher_RunsCallsConcurrently(t *testing.T) {
	var inFlight, peak int32
	slow := Tool{
		Schema: types.ToolSchema{Name: "slow"},
		Func: func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return json.RawMessage(`"ok"`), nil
		},
	}

	calls := make([]types.ToolCall, 4)
	for i := range calls {
		calls[i] = types.ToolCall{ID: string(rune('a' + i)), Name: "slow"}
	}

	t.Run("unbounded", func(t *testing.T) {
		atomic.StoreInt32(&peak, 0)
		d := newDispatcher(t, slow)
		_, err := d.Dispatch(context.Background(), calls)
		require.NoError(t, err)
		assert.Equal(t, int32(4), atomic.LoadInt32(&peak))
	})

	t.Run("limited", func(t *testing.T) {
		atomic.StoreInt32(&peak, 0)
		reg := NewRegistry(nil)
		require.NoError(t, reg.Register(slow))
		d := NewDispatcher(reg, nil, WithMaxConcurrency(2))
		_, err := d.Dispatch(context.Background(), calls)
		require.NoError(t, err)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	})
}

func TestDispatcher_UnregisteredToolBecomesErrorResult(t *testing.T) {
	d := newDispatcher(t, echoTool("search"))

	results, err := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "x1", Name: "does_not_exist", Arguments: json.RawMessage(`{}`)},
		{ID: "x2", Name: "search", Arguments: json.RawMessage(`{"query":"ok"}`)},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].IsError())
	assert.Equal(t, types.ErrToolValidation, results[0].ErrorCode)
	assert.Equal(t, "x1", results[0].ToolCallID)

	msg := results[0].ToMessage()
	assert.True(t, msg.IsError)
	assert.Equal(t, "x1", msg.ToolCallID)
	assert.Contains(t, msg.Content, "Error: ")
	assert.Contains(t, msg.Content, "does_not_exist")

	assert.False(t, results[1].IsError())
}

func TestDispatcher_SchemaViolationSkipsInvocation(t *testing.T) {
	var invoked atomic.Bool
	tool := echoTool("search")
	inner := tool.Func
	tool.Func = func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		invoked.Store(true)
		return inner(ctx, args)
	}
	d := newDispatcher(t, tool)

	results, err := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "1", Name: "search", Arguments: json.RawMessage(`{"q":"wrong key"}`)},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.ErrToolValidation, results[0].ErrorCode)
	assert.Contains(t, results[0].Error, "invalid arguments")
	assert.False(t, invoked.Load())
}

func TestDispatcher_ExecutionFailures(t *testing.T) {
	failing := Tool{
		Schema: types.ToolSchema{Name: "failing"},
		Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("connection refused")
		},
	}
	hanging := Tool{
		Schema:  types.ToolSchema{Name: "hanging"},
		Timeout: 20 * time.Millisecond,
		Func: func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	panicking := Tool{
		Schema: types.ToolSchema{Name: "panicking"},
		Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			panic("boom")
		},
	}
	d := newDispatcher(t, failing, hanging, panicking)

	results, err := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "1", Name: "failing"},
		{ID: "2", Name: "hanging"},
		{ID: "3", Name: "panicking"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.Equal(t, types.ErrToolExecution, r.ErrorCode, r.Name)
	}
	assert.Contains(t, results[0].Error, "connection refused")
	assert.Contains(t, results[1].Error, "timeout")
	assert.Contains(t, results[2].Error, "boom")
}

func TestDispatcher_RateLimit(t *testing.T) {
	tool := echoTool("limited")
	tool.RateLimit = &RateLimitConfig{MaxCalls: 1, Window: time.Hour}
	d := newDispatcher(t, tool)

	args := json.RawMessage(`{"query":"a"}`)
	results, err := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "1", Name: "limited", Arguments: args},
	})
	require.NoError(t, err)
	assert.False(t, results[0].IsError())

	results, err = d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "2", Name: "limited", Arguments: args},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ErrToolExecution, results[0].ErrorCode)
	assert.Contains(t, results[0].Error, "rate limit")
}

func TestDispatcher_CancellationDiscardsBatch(t *testing.T) {
	started := make(chan struct{}, 2)
	blocking := Tool{
		Schema: types.ToolSchema{Name: "blocking"},
		Func: func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	quick := Tool{
		Schema: types.ToolSchema{Name: "quick"},
		Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			started <- struct{}{}
			return json.RawMessage(`"done"`), nil
		},
	}
	d := newDispatcher(t, blocking, quick)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		<-started
		cancel()
	}()

	results, err := d.Dispatch(ctx, []types.ToolCall{
		{ID: "1", Name: "quick"},
		{ID: "2", Name: "blocking"},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestDispatcher_AlreadyCancelled(t *testing.T) {
	d := newDispatcher(t, echoTool("search"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := d.Dispatch(ctx, []types.ToolCall{{ID: "1", Name: "search"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestDispatcher_EmptyBatch(t *testing.T) {
	d := newDispatcher(t)
	results, err := d.Dispatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDispatcher_Observer(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(echoTool("search")))
	obs := &recordingObserver{}
	d := NewDispatcher(reg, nil, WithObserver(obs))

	_, err := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "1", Name: "search", Arguments: json.RawMessage(`{"query":"a"}`)},
		{ID: "2", Name: "search", Arguments: json.RawMessage(`{}`)},
		{ID: "3", Name: "ghost"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ok", string(types.ErrToolValidation)}, obs.calls["search"])
	assert.Equal(t, []string{string(types.ErrToolValidation)}, obs.calls["ghost"])
}
