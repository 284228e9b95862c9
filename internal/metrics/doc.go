// Copyright (c) AgentGraph Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的图执行指标采集。

# 概述

Collector 同时实现 workflow.Observer 与 tools.Observer，可直接放入
workflow.CompileConfig.Observer 与 tools.WithObserver。每个 Collector
注册到自己的 Registry（或调用方传入的 Registry），Handler 暴露
/metrics 端点。

# 指标

  - graph_runs_total{graph,status}、graph_run_duration_seconds、graph_run_steps
  - graph_node_executions_total{graph,node,status}、graph_node_duration_seconds
  - graph_route_transitions_total{graph,from,to}
  - tool_calls_total{tool,status}、tool_call_duration_seconds
*/
package metrics
