/*
Package agent 提供基于 workflow 图引擎的预置工作流。

  - NewToolAgent：callModel 与 tools 之间循环，模型不再请求工具时结束。
  - NewReflectionAgent：Generate 撰写、Reflect 点评，按反思上限结束，
    Generate 可随时调用工具。
  - NewKnowledgeCurator：KnowledgeBase 调研客户，默认只包含该阶段；
    WithHandoff 把 Curate 阶段接在调研之后。
  - NewCurator：单独的 Curate 阶段，依据 RSS 源筛选新闻，通常以调研结果为输入。

SearchToolset 与 CurationToolset 构建各预置所用的工具注册中心，
外部服务通过 Backends 注入。
*/
package agent
