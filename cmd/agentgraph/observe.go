package main

import (
	"time"

	"github.com/BaSui01/agentgraph/llm/tools"
	"github.com/BaSui01/agentgraph/workflow"
)

// observer 同时接收引擎与工具调度器的回调
type observer interface {
	workflow.Observer
	tools.Observer
}

// fanout 把回调转发给所有已启用的观察者（Prometheus、OTel）
type fanout struct {
	observers []observer
}

func (f *fanout) add(o observer) { f.observers = append(f.observers, o) }

func (f *fanout) empty() bool { return len(f.observers) == 0 }

func (f *fanout) ObserveRun(graph string, status workflow.RunStatus, duration time.Duration, steps int) {
	for _, o := range f.observers {
		o.ObserveRun(graph, status, duration, steps)
	}
}

func (f *fanout) ObserveNode(graph, node, status string, duration time.Duration) {
	for _, o := range f.observers {
		o.ObserveNode(graph, node, status, duration)
	}
}

func (f *fanout) ObserveRoute(graph, from, to string) {
	for _, o := range f.observers {
		o.ObserveRoute(graph, from, to)
	}
}

func (f *fanout) ObserveToolCall(tool, status string, duration time.Duration) {
	for _, o := range f.observers {
		o.ObserveToolCall(tool, status, duration)
	}
}
