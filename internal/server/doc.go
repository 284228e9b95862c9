/*
包 server 管理 CLI 附带的后台 HTTP 监听器（目前用于 /metrics）。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供非阻塞
    Start、幂等 Shutdown、阻塞到 context 结束的 Serve，以及异步
    错误通道 Errors。
  - Config：监听地址、读写超时与优雅关闭超时。

NewMetricsManager 把 Prometheus 处理器挂到配置的路径上。
*/
package server
