// Copyright (c) AgentGraph Authors.
// Licensed under the MIT License.

/*
Package types 提供 AgentGraph 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、llm、agent
等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Message / Role    — 消息日志条目（system、human、assistant、tool）
  - ToolCall          — 模型发起的工具调用
  - ToolSchema        — 工具定义（name + description + JSON Schema parameters）
  - ToolResult        — 工具执行结果，失败时携带错误码
  - Error / ErrorCode — 结构化错误：CONFIGURATION、UNKNOWN_ROUTE、
    TOOL_VALIDATION、TOOL_EXECUTION、CAPABILITY、STEP_LIMIT
  - JSONSchema        — JSON Schema 定义与构建器（NewObjectSchema 等）

# 主要能力

  - 消息构造：NewHumanMessage / NewAssistantMessage / NewToolMessage 等
  - 错误工具链：AsError / IsCode / IsRetryable / GetErrorCode
  - Context 传播：WithTraceID / WithRunID / WithGraph / WithNode
*/
package types
