// Copyright (c) AgentGraph Authors.
// Licensed under the MIT License.

/*
Package main 提供 AgentGraph 命令行入口。

# 概述

cmd/agentgraph 用于校验和试运行图定义。模型回复与工具结果来自 YAML
脚本（internal/script），因此无需真实的模型服务即可走完整条执行路径，
包括中断、检查点保存和恢复。

# 核心类型

  - app         — 一次命令执行期间共享的日志、检查点存储、指标与遥测组件
  - graphFlags  — run / resume / validate 共用的命令行参数
  - fanout      — 把引擎与工具调度器的回调转发给 Prometheus 与 OTel 观察者

# 主要能力

  - 子命令：validate、run、resume、checkpoints、version
  - 图来源：YAML DSL（--graph）或内置预设（--preset）
  - 中断与恢复：--interrupt 暂停的运行写入检查点，resume --checkpoint 继续
  - 失败或取消的运行同样写入检查点，可从失败节点重试
  - Metrics 服务器：metrics.enabled 时在独立端口暴露 /metrics
  - 退出码：0 完成，1 错误，2 用法错误，3 在中断点暂停
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
