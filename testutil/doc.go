/*
Package testutil 提供 AgentGraph 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertRoles / AssertUniqueIDs
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: ScriptedModel（按脚本回放的模型能力）、MockProvider
    （LLM Provider）、ToolKit（记录调用的工具注册中心），均支持 Builder
    模式与错误注入
*/
package testutil
