// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 AgentGraph 提供集中式的 TracerProvider 和 MeterProvider 配置，
// 并以 Observer 的形式把图执行与工具调用记录为 OTel 指标。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
