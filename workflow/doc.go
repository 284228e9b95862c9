// Copyright (c) AgentGraph Authors.
// Licensed under the MIT License.

/*
Package workflow 提供基于消息日志的有状态图引擎。

# 概述

图由命名节点、固定边和条件边组成。一次运行持有一份消息日志：引擎执行当前
节点，将其输出按消息 ID 合并进日志，再根据出边（固定或由 Router 计算）
选择下一个节点，直到抵达 End、在中断点暂停或遇到致命错误。

# 核心接口与类型

  - StateGraph     — 构建器：AddNode / AddEdge / AddConditionalEdges / SetEntryPoint
  - CompiledGraph  — 编译后的只读图，提供 Run 与 Resume
  - Executor       — 节点执行接口；内置 ModelStep 与 ToolStep
  - RouterFunc     — 条件路由；内置 ToolsCondition 与 ReflectionRouter
  - RunState       — 运行状态，可在中断点持久化后恢复
  - MergeMessages  — 按 ID 原位替换、新消息追加的合并规则

# 错误语义

  - 编译期：CONFIGURATION，一次性列出所有问题
  - 运行期：UNKNOWN_ROUTE、CAPABILITY、STEP_LIMIT 为致命错误，包装为 RunError
  - 工具校验与执行失败不会中断运行，而是以错误工具消息写回日志

# 可观测性

日志使用 zap，链路使用 OpenTelemetry，指标通过 Observer 接口上报，
流式事件通过 WithStreamEmitter 注入上下文。
*/
package workflow
