// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"time"

	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时实现 workflow.Observer 与 tools.Observer。
type Collector struct {
	// 运行指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runSteps    *prometheus.HistogramVec

	// 节点指标
	nodeExecutionsTotal *prometheus.CounterVec
	nodeDuration        *prometheus.HistogramVec

	// 路由指标
	routeTransitions *prometheus.CounterVec

	// 工具指标
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

var (
	_ workflow.Observer = (*Collector)(nil)
	_ tools.Observer    = (*Collector)(nil)
)

// NewCollector 创建指标收集器。reg 为 nil 时使用独立的 Registry，
// 避免同一进程内多个 Collector 重复注册。
func NewCollector(namespace string, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		gatherer: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// 运行指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_runs_total",
			Help:      "Total number of finished graph runs",
		},
		[]string{"graph", "status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_run_duration_seconds",
			Help:      "Graph run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"graph"},
	)

	c.runSteps = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_run_steps",
			Help:      "Node executions per graph run",
			Buckets:   prometheus.LinearBuckets(1, 4, 8),
		},
		[]string{"graph"},
	)

	// 节点指标
	c.nodeExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_node_executions_total",
			Help:      "Total number of node executions",
		},
		[]string{"graph", "node", "status"},
	)

	c.nodeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_node_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"graph", "node"},
	)

	// 路由指标
	c.routeTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_route_transitions_total",
			Help:      "Total number of routing decisions",
		},
		[]string{"graph", "from", "to"},
	)

	// 工具指标
	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"},
	)

	c.toolCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔀 图执行指标记录
// =============================================================================

// ObserveRun 记录一次 Run 或 Resume 的结束
func (c *Collector) ObserveRun(graph string, status workflow.RunStatus, duration time.Duration, steps int) {
	c.runsTotal.WithLabelValues(graph, string(status)).Inc()
	c.runDuration.WithLabelValues(graph).Observe(duration.Seconds())
	c.runSteps.WithLabelValues(graph).Observe(float64(steps))
}

// ObserveNode 记录单个节点执行
func (c *Collector) ObserveNode(graph, node, status string, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(graph, node, status).Inc()
	c.nodeDuration.WithLabelValues(graph, node).Observe(duration.Seconds())
}

// ObserveRoute 记录路由决策
func (c *Collector) ObserveRoute(graph, from, to string) {
	c.routeTransitions.WithLabelValues(graph, from, to).Inc()
}

// =============================================================================
// 🔧 工具指标记录
// =============================================================================

// ObserveToolCall 记录工具调用
func (c *Collector) ObserveToolCall(tool, status string, duration time.Duration) {
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// =============================================================================
// 🌐 HTTP 暴露
// =============================================================================

// Handler 返回该 Collector 所属 Registry 的 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		Registry:          c.registry,
		EnableOpenMetrics: true,
	})
}

// Gatherer 返回底层 Gatherer，用于测试或自定义导出
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.gatherer
}
