package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/testutil/mocks"
	"github.com/BaSui01/agentgraph/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryModel_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	inner := llm.ModelFunc(func(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error) {
		calls++
		if calls < 3 {
			return types.Message{}, errors.New("upstream 503")
		}
		return types.NewAssistantMessage("essay"), nil
	})

	model := NewRetryModel(inner, &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}, zap.NewNop())

	msg, err := model.Invoke(context.Background(), "persona", []types.Message{types.NewHumanMessage("q")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "essay", msg.Content)
	assert.Equal(t, 3, calls)
}

func TestRetryModel_GivesUp(t *testing.T) {
	inner := llm.ModelFunc(func(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error) {
		return types.Message{}, errors.New("down")
	})

	model := NewRetryModel(inner, &RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}, nil)
	_, err := model.Invoke(context.Background(), "", nil, nil)
	assert.ErrorContains(t, err, "failed after 1 retries")
}

func TestRetryModel_OnlyRetryableErrors(t *testing.T) {
	calls := 0
	inner := llm.ModelFunc(func(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error) {
		calls++
		if calls == 1 {
			return types.Message{}, types.NewError(types.ErrCapability, "rate limited").WithRetryable(true)
		}
		return types.Message{}, types.NewError(types.ErrCapability, "bad request")
	})

	model := NewRetryModel(inner, &RetryPolicy{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		RetryIf:      types.IsRetryable,
	}, nil)
	_, err := model.Invoke(context.Background(), "", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "bad request")
}

func TestRetryModel_OverProviderModel(t *testing.T) {
	provider := mocks.NewMockProvider()
	attempts := 0
	provider.WithCompletionFunc(func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		attempts++
		if attempts == 1 {
			return nil, types.NewError(types.ErrCapability, "overloaded").WithRetryable(true)
		}
		return &llm.ChatResponse{
			Model:   req.Model,
			Choices: []llm.ChatChoice{{Message: types.NewAssistantMessage("essay")}},
		}, nil
	})

	base := llm.NewProviderModel(provider, llm.ProviderModelConfig{Model: "scripted"}, nil)
	model := NewRetryModel(base, &RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, RetryIf: types.IsRetryable}, nil)

	msg, err := model.Invoke(context.Background(), "writer", []types.Message{types.NewHumanMessage("q")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "essay", msg.Content)
	assert.Equal(t, 2, provider.GetCallCount())

	calls := provider.GetCalls()
	require.Len(t, calls, 2)
	assert.Error(t, calls[0].Error)
	assert.Equal(t, "scripted", calls[1].Request.Model)
}

func TestRetryModel_ProviderFailures(t *testing.T) {
	failing := NewRetryModel(
		llm.NewProviderModel(mocks.NewErrorProvider(errors.New("invalid api key")), llm.ProviderModelConfig{}, nil),
		&RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, RetryIf: types.IsRetryable}, nil)
	_, err := failing.Invoke(context.Background(), "", nil, nil)
	assert.ErrorContains(t, err, "invalid api key")

	flakey := mocks.NewFlakeyProvider(1, "ok")
	model := llm.NewProviderModel(flakey, llm.ProviderModelConfig{}, nil)
	msg, err := model.Invoke(context.Background(), "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	_, err = model.Invoke(context.Background(), "", nil, nil)
	assert.Error(t, err)

	slow := mocks.NewSuccessProvider("late").WithDelay(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = llm.NewProviderModel(slow, llm.ProviderModelConfig{}, nil).Invoke(ctx, "", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
