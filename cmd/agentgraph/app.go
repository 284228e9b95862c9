package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentgraph/config"
	"github.com/BaSui01/agentgraph/internal/metrics"
	"github.com/BaSui01/agentgraph/internal/server"
	"github.com/BaSui01/agentgraph/internal/telemetry"
	"github.com/BaSui01/agentgraph/llm"
	"github.com/BaSui01/agentgraph/llm/retry"
	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/types"
	"github.com/BaSui01/agentgraph/workflow"
	"github.com/BaSui01/agentgraph/workflow/checkpoint"
)

// app 持有一次命令执行期间的共享组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     checkpoint.Store
	observer  *fanout
	collector *metrics.Collector
	metrics   *server.Manager
	otel      *telemetry.Providers
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp 按配置初始化日志、遥测、指标与检查点存储
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := initLogger(cfg.Log)
	a := &app{cfg: cfg, logger: logger, observer: &fanout{}}

	providers, err := telemetry.Init(cfg.Telemetry, logger, telemetry.WithVersion(Version))
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		a.otel = providers
		if cfg.Telemetry.Enabled {
			obs, err := telemetry.NewObserver(providers.Meter())
			if err != nil {
				logger.Warn("failed to create telemetry instruments", zap.Error(err))
			} else {
				a.observer.add(obs)
			}
		}
	}

	if cfg.Metrics.Enabled {
		a.collector = metrics.NewCollector("agentgraph", nil, logger)
		a.observer.add(a.collector)

		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		a.metrics = server.NewMetricsManager(cfg.Metrics.Path, a.collector.Handler(), srvCfg, logger)
		if err := a.metrics.Start(); err != nil {
			a.close()
			return nil, fmt.Errorf("start metrics listener: %w", err)
		}
	}

	store, err := checkpoint.NewStore(ctx, cfg.Checkpoint, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	a.store = store
	return a, nil
}

func (a *app) close() {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	if a.otel != nil {
		errs = append(errs, a.otel.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown finished with errors", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// =============================================================================
// 🔧 配置转换
// =============================================================================

func retryPolicy(cfg config.RetryConfig) *retry.RetryPolicy {
	return &retry.RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		Jitter:       cfg.Jitter,
		RetryIf:      types.IsRetryable,
	}
}

func modelConfig(cfg config.ModelConfig) llm.ProviderModelConfig {
	return llm.ProviderModelConfig{
		Model:       cfg.Name,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}
}

// newModel 把 provider 包装成模型能力，按配置附加重试
func (a *app) newModel(provider llm.Provider) llm.Model {
	var model llm.Model = llm.NewProviderModel(provider, modelConfig(a.cfg.Model), a.logger)
	if a.cfg.Retry.MaxRetries > 0 {
		policy := retryPolicy(a.cfg.Retry)
		logger := a.logger
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("retrying model call",
				zap.String("provider", provider.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
		model = retry.NewRetryModel(model, policy, a.logger)
	}
	return model
}

func (a *app) registryOptions() []tools.RegistryOption {
	return []tools.RegistryOption{tools.WithDefaultTimeout(a.cfg.Tools.DefaultTimeout)}
}

func (a *app) newDispatcher(reg *tools.Registry) *tools.Dispatcher {
	opts := []tools.DispatcherOption{
		tools.WithMaxConcurrency(a.cfg.Tools.MaxConcurrency),
		tools.WithTracer(a.otel.Tracer("llm/tools")),
	}
	if !a.observer.empty() {
		opts = append(opts, tools.WithObserver(a.observer))
	}
	return tools.NewDispatcher(reg, a.logger, opts...)
}

func (a *app) compileConfig(interrupts []string) workflow.CompileConfig {
	cfg := workflow.CompileConfig{
		InterruptBefore: interrupts,
		MaxSteps:        a.cfg.Engine.MaxSteps,
		Logger:          a.logger,
		Checkpointer:    a.store,
		Tracer:          a.otel.Tracer("workflow"),
	}
	if !a.observer.empty() {
		cfg.Observer = a.observer
	}
	return cfg
}
