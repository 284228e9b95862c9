package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/agentgraph/types"
	"github.com/BaSui01/agentgraph/workflow"
	"github.com/BaSui01/agentgraph/workflow/checkpoint"
)

// =============================================================================
// ✅ validate 命令
// =============================================================================

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags graphFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if flags.graphPath == "" && fs.NArg() > 0 {
		flags.graphPath = fs.Arg(0)
	}
	if flags.graphPath == "" {
		fmt.Fprintln(stderr, "validate: --graph is required")
		return exitUsage
	}

	vars, err := flags.variables()
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return exitUsage
	}

	graph, err := validateGraph(flags.graphPath, flags.scriptPath, vars, zap.NewNop())
	if err != nil {
		fmt.Fprintf(stderr, "%s: invalid\n", flags.graphPath)
		printProblems(stderr, err)
		return exitError
	}

	fmt.Fprintf(stdout, "%s: graph %q is valid\n", flags.graphPath, graph.Name())
	fmt.Fprintf(stdout, "  entry: %s\n", graph.Entry())
	for _, node := range graph.Nodes() {
		fmt.Fprintf(stdout, "  %s -> %s\n", node, strings.Join(graph.Targets(node), " | "))
	}
	return exitOK
}

// printProblems 逐条输出配置错误中收集的问题
func printProblems(w io.Writer, err error) {
	var typed *types.Error
	if errors.As(err, &typed) {
		if problems, ok := typed.Details["problems"].([]string); ok && len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintf(w, "  - %s\n", p)
			}
			return
		}
	}
	fmt.Fprintf(w, "  - %v\n", err)
}

// =============================================================================
// ▶️ run / resume 命令
// =============================================================================

func runGraph(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags graphFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	return withGraph(&flags, stderr, func(ctx context.Context, a *app, lg *loadedGraph) int {
		input := lg.fixture.Messages()
		if len(input) == 0 {
			fmt.Fprintln(stderr, "run: script has no input messages")
			return exitUsage
		}
		state, err := lg.graph.Run(ctx, input)
		return a.report(state, err, &flags, stdout, stderr)
	})
}

func runResume(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags graphFlags
	flags.register(fs)
	runID := fs.String("checkpoint", "", "Run id of the checkpoint to resume")
	var notes multiFlag
	fs.Var(&notes, "message", "Human message appended before resuming (repeatable)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *runID == "" {
		fmt.Fprintln(stderr, "resume: --checkpoint is required")
		return exitUsage
	}

	return withGraph(&flags, stderr, func(ctx context.Context, a *app, lg *loadedGraph) int {
		paused, err := a.store.Load(ctx, *runID)
		if err != nil {
			fmt.Fprintf(stderr, "resume: %v\n", err)
			return exitError
		}
		// 例如审批意见
		for _, note := range notes {
			paused.Messages = append(paused.Messages, types.NewHumanMessage(note))
		}

		state, err := lg.graph.Resume(ctx, paused)
		if err == nil && state.Status == workflow.StatusCompleted {
			if err := a.store.Delete(ctx, state.RunID); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
				a.logger.Warn("failed to delete finished checkpoint", zap.String("run_id", state.RunID), zap.Error(err))
			}
		}
		return a.report(state, err, &flags, stdout, stderr)
	})
}

// withGraph 加载配置、初始化组件并构建图，然后执行 fn
func withGraph(flags *graphFlags, stderr io.Writer, fn func(context.Context, *app, *loadedGraph) int) int {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer a.close()

	lg, err := a.buildGraph(flags)
	if err != nil {
		fmt.Fprintln(stderr, "failed to build graph:")
		printProblems(stderr, err)
		return exitError
	}

	if flags.trace {
		ctx = workflow.WithStreamEmitter(ctx, traceEmitter(stderr))
	}
	return fn(ctx, a, lg)
}

func traceEmitter(w io.Writer) workflow.StreamEmitter {
	return func(ev workflow.StreamEvent) {
		switch ev.Type {
		case workflow.EventRoute:
			fmt.Fprintf(w, "[%s] %s -> %s\n", ev.Type, ev.Node, ev.Next)
		case workflow.EventNodeError:
			fmt.Fprintf(w, "[%s] %s: %v\n", ev.Type, ev.Node, ev.Error)
		case workflow.EventNodeComplete:
			fmt.Fprintf(w, "[%s] %s (+%d, %d messages)\n", ev.Type, ev.Node, ev.Produced, ev.Messages)
		default:
			fmt.Fprintf(w, "[%s] %s\n", ev.Type, ev.Node)
		}
	}
}

// report 输出运行结果；失败或取消的运行会写入检查点以便恢复
func (a *app) report(state *workflow.RunState, runErr error, flags *graphFlags, stdout, stderr io.Writer) int {
	if runErr != nil {
		if state == nil {
			fmt.Fprintf(stderr, "run rejected: %v\n", runErr)
			return exitError
		}
		fmt.Fprintf(stderr, "run %s %s: %v\n", state.RunID, state.Status, runErr)
		var re *workflow.RunError
		if errors.As(runErr, &re) && re.State != nil {
			if err := a.store.Save(context.Background(), re.State); err != nil {
				a.logger.Error("failed to save failed run", zap.String("run_id", state.RunID), zap.Error(err))
			} else {
				from := "from"
				if re.State.RoutePending {
					from = "routing after"
				}
				fmt.Fprintf(stderr, "state saved; retry %s %q with: agentgraph resume --checkpoint %s\n", from, re.Node, state.RunID)
			}
		}
		return exitError
	}

	if flags.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			fmt.Fprintf(stderr, "encode state: %v\n", err)
			return exitError
		}
	} else {
		printTranscript(stdout, state)
	}

	if state.Status == workflow.StatusInterrupted {
		fmt.Fprintf(stderr, "run %s paused before %q; resume with: agentgraph resume --checkpoint %s\n",
			state.RunID, state.Next, state.RunID)
		return exitInterrupted
	}
	return exitOK
}

func printTranscript(w io.Writer, state *workflow.RunState) {
	fmt.Fprintf(w, "run %s (%s) %s after %d steps\n", state.RunID, state.Graph, state.Status, state.Steps)
	for _, m := range state.Messages {
		switch {
		case len(m.ToolCalls) > 0:
			names := make([]string, len(m.ToolCalls))
			for i, c := range m.ToolCalls {
				names[i] = c.Name
			}
			fmt.Fprintf(w, "%s: [calls %s] %s\n", m.Role, strings.Join(names, ", "), m.Content)
		case m.Role == types.RoleTool:
			fmt.Fprintf(w, "%s(%s): %s\n", m.Role, m.Name, m.Content)
		default:
			fmt.Fprintf(w, "%s: %s\n", m.Role, m.Content)
		}
	}
}

// =============================================================================
// 💾 checkpoints 命令
// =============================================================================

func runCheckpoints(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("checkpoints", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	graph := fs.String("graph", "", "Only list checkpoints of this graph")
	limit := fs.Int("limit", 20, "Maximum number of checkpoints to list")
	remove := fs.String("delete", "", "Delete the checkpoint with this run id")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	ctx := context.Background()
	store, err := checkpoint.NewStore(ctx, cfg.Checkpoint, initLogger(cfg.Log))
	if err != nil {
		fmt.Fprintf(stderr, "open checkpoint store: %v\n", err)
		return exitError
	}
	defer store.Close()

	if *remove != "" {
		if err := store.Delete(ctx, *remove); err != nil {
			fmt.Fprintf(stderr, "delete %s: %v\n", *remove, err)
			return exitError
		}
		fmt.Fprintf(stdout, "deleted %s\n", *remove)
		return exitOK
	}

	states, err := store.List(ctx, *graph, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "list checkpoints: %v\n", err)
		return exitError
	}
	for _, s := range states {
		fmt.Fprintf(stdout, "%s\t%s\t%s\tnext=%s\tmessages=%d\t%s\n",
			s.RunID, s.Graph, s.Status, s.Next, len(s.Messages), s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return exitOK
}
