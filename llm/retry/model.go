package retry

import (
	"context"

	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/types"
	"go.uber.org/zap"
)

// RetryModel wraps a Model so that failed invocations are retried with
// backoff. The graph engine never retries on its own; callers that want
// retries install this wrapper around the capability they hand to a graph.
type RetryModel struct {
	inner   llm.Model
	retryer Retryer
}

// NewRetryModel wraps inner with the given policy.
func NewRetryModel(inner llm.Model, policy *RetryPolicy, logger *zap.Logger) *RetryModel {
	return &RetryModel{
		inner:   inner,
		retryer: NewBackoffRetryer(policy, logger),
	}
}

// Invoke implements llm.Model.
func (m *RetryModel) Invoke(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error) {
	result, err := m.retryer.DoWithResult(ctx, func() (any, error) {
		return m.inner.Invoke(ctx, persona, history, tools)
	})
	if err != nil {
		return types.Message{}, err
	}
	return result.(types.Message), nil
}
