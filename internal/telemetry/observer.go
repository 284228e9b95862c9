package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the meter and tracer name used by agentgraph.
const InstrumentationName = "github.com/BaSui01/agentgraph"

// Observer records graph runs, node executions, routing decisions and tool
// calls as OTel metrics. It satisfies workflow.Observer and tools.Observer.
type Observer struct {
	runs      metric.Int64Counter
	runTime   metric.Float64Histogram
	nodes     metric.Int64Counter
	nodeTime  metric.Float64Histogram
	routes    metric.Int64Counter
	toolCalls metric.Int64Counter
	toolTime  metric.Float64Histogram
}

var _ workflow.Observer = (*Observer)(nil)

// NewObserver creates the instruments on meter.
func NewObserver(meter metric.Meter) (*Observer, error) {
	o := &Observer{}
	var err error
	if o.runs, err = meter.Int64Counter("agentgraph.graph.runs",
		metric.WithDescription("Finished graph runs")); err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}
	if o.runTime, err = meter.Float64Histogram("agentgraph.graph.run.duration",
		metric.WithDescription("Graph run duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}
	if o.nodes, err = meter.Int64Counter("agentgraph.graph.node.executions",
		metric.WithDescription("Node executions")); err != nil {
		return nil, fmt.Errorf("create node counter: %w", err)
	}
	if o.nodeTime, err = meter.Float64Histogram("agentgraph.graph.node.duration",
		metric.WithDescription("Node execution duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create node duration histogram: %w", err)
	}
	if o.routes, err = meter.Int64Counter("agentgraph.graph.route.transitions",
		metric.WithDescription("Routing decisions")); err != nil {
		return nil, fmt.Errorf("create route counter: %w", err)
	}
	if o.toolCalls, err = meter.Int64Counter("agentgraph.tool.calls",
		metric.WithDescription("Tool calls")); err != nil {
		return nil, fmt.Errorf("create tool counter: %w", err)
	}
	if o.toolTime, err = meter.Float64Histogram("agentgraph.tool.duration",
		metric.WithDescription("Tool call duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create tool duration histogram: %w", err)
	}
	return o, nil
}

// Observer callbacks carry no context; measurements are recorded against
// the background context.

func (o *Observer) ObserveRun(graph string, status workflow.RunStatus, duration time.Duration, _ int) {
	ctx := context.Background()
	o.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph", graph),
		attribute.String("status", string(status)),
	))
	o.runTime.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("graph", graph)))
}

func (o *Observer) ObserveNode(graph, node, status string, duration time.Duration) {
	ctx := context.Background()
	o.nodes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph", graph),
		attribute.String("node", node),
		attribute.String("status", status),
	))
	o.nodeTime.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("graph", graph),
		attribute.String("node", node),
	))
}

func (o *Observer) ObserveRoute(graph, from, to string) {
	o.routes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("graph", graph),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (o *Observer) ObserveToolCall(tool, status string, duration time.Duration) {
	ctx := context.Background()
	o.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
	o.toolTime.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
}
