// Package config 提供 agentgraph 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → AGENTGRAPH_* 环境变量 的顺序叠加，
// 最后运行注册的验证器。各配置段对应引擎、工具分发、模型参数、
// 重试策略、检查点存储、日志、遥测与指标。
package config
