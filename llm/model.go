package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/types"
	"go.uber.org/zap"
)

// Model is the capability a model step invokes: given a system persona, the
// full conversation and the tools on offer, produce one assistant message.
// Implementations must be safe to retry; failures are reported as errors and
// wrapped into CAPABILITY errors by the caller.
type Model interface {
	Invoke(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error)

func (f ModelFunc) Invoke(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error) {
	return f(ctx, persona, history, tools)
}

// ProviderModelConfig holds the request parameters a ProviderModel sends on
// every call.
type ProviderModelConfig struct {
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// ProviderModel adapts a Provider to the Model capability. It is built once
// per graph and reused for every model step.
type ProviderModel struct {
	provider Provider
	config   ProviderModelConfig
	logger   *zap.Logger
}

// NewProviderModel creates a Model backed by provider.
func NewProviderModel(provider Provider, config ProviderModelConfig, logger *zap.Logger) *ProviderModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderModel{
		provider: provider,
		config:   config,
		logger:   logger.With(zap.String("component", "provider_model"), zap.String("provider", provider.Name())),
	}
}

// Invoke implements Model. Provider errors are returned unwrapped; the
// calling step attaches the CAPABILITY code and node.
func (m *ProviderModel) Invoke(ctx context.Context, persona string, history []types.Message, tools []types.ToolSchema) (types.Message, error) {
	messages := make([]types.Message, 0, len(history)+1)
	if persona != "" {
		messages = append(messages, types.NewSystemMessage(persona))
	}
	messages = append(messages, history...)

	req := &ChatRequest{
		Model:       m.config.Model,
		Messages:    messages,
		MaxTokens:   m.config.MaxTokens,
		Temperature: m.config.Temperature,
		Tools:       tools,
		Timeout:     m.config.Timeout,
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	start := time.Now()
	resp, err := m.provider.Completion(ctx, req)
	if err != nil {
		m.logger.Warn("completion failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return types.Message{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return types.Message{}, fmt.Errorf("provider %s returned no choices", m.provider.Name())
	}

	msg := resp.Choices[0].Message
	msg.Role = types.RoleAssistant
	if msg.ID == "" {
		msg.ID = types.NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	m.logger.Debug("completion finished",
		zap.String("model", resp.Model),
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))
	return msg, nil
}
