// =============================================================================
// AgentGraph 命令行入口
// =============================================================================
// 校验与试运行 YAML 图定义，模型与工具由脚本文件回放。
//
// 使用方法:
//
//	agentgraph validate --graph graph.yaml                    # 校验图定义
//	agentgraph run --graph graph.yaml --script fixture.yaml   # 试运行，中断时写入检查点
//	agentgraph run --preset tool-agent --script fixture.yaml  # 运行内置预设
//	agentgraph resume --graph graph.yaml --script fixture.yaml --checkpoint <run-id>
//	agentgraph checkpoints [--graph name] [--delete run-id]   # 查看或删除检查点
//	agentgraph version                                        # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/agentgraph/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 3
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "run":
		return runGraph(args[1:], stdout, stderr)
	case "resume":
		return runResume(args[1:], stdout, stderr)
	case "checkpoints":
		return runCheckpoints(args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "AgentGraph %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `AgentGraph - stateful agent graph runner

Usage:
  agentgraph <command> [options]

Commands:
  validate      Validate a graph definition
  run           Run a graph with a scripted model and tools
  resume        Resume a paused or failed run from its checkpoint
  checkpoints   List or delete stored checkpoints
  version       Show version information
  help          Show this help message

Common options:
  --config <path>     Path to configuration file (YAML)

Options for 'run' and 'resume':
  --graph <path>      Graph definition (YAML DSL)
  --preset <name>     Built-in graph: tool-agent, reflection-agent, knowledge-curator, curator
  --script <path>     Scripted model turns and tools (YAML)
  --var key=value     Graph variable override, repeatable
  --interrupt <node>  Pause before node, repeatable
  --handoff           knowledge-curator: hand over from KnowledgeBase to Curate
  --trace             Print node and route events to stderr
  --json              Print the final state as JSON
  --checkpoint <id>   (resume only) run id to resume
  --message <text>    (resume only) human message appended before resuming

Exit codes:
  0 completed, 1 error, 2 usage, 3 paused at an interrupt

Examples:
  agentgraph validate --graph examples/reflection.yaml
  agentgraph run --graph examples/reflection.yaml --script examples/essay.yaml
  agentgraph run --preset tool-agent --script examples/search.yaml --interrupt tools
  agentgraph resume --preset tool-agent --script examples/search.yaml --checkpoint 3f2a...
  agentgraph checkpoints --graph tool-agent`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
