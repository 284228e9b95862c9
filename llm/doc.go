/*
包 llm 定义图引擎所依赖的模型能力边界。

# 概述

模型步骤只通过 [Model] 接口与语言模型交互：输入系统人设、完整消息日志和可用
工具列表，输出一条 assistant 消息（可能携带 tool_calls）。具体的服务商接入
实现 [Provider]，再由 [ProviderModel] 适配为 [Model]。

# 子包

  - llm/tools：按图隔离的工具注册中心与并发调度器
  - llm/retry：调用方自行安装的指数退避重试封装
*/
package llm
