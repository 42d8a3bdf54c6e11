// Command coro-code is a minimal interactive driver: it submits one task
// from argv to the step scheduler, renders progress to the terminal, and
// prints a success/failure summary with step/duration stats on exit.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jokas3322/coro-code/internal/agentrun"
	"github.com/jokas3322/coro-code/internal/config"
	"github.com/jokas3322/coro-code/internal/event"
	"github.com/jokas3322/coro-code/internal/llmdial"
	"github.com/jokas3322/coro-code/internal/prompt"
	"github.com/jokas3322/coro-code/internal/tool"
	"github.com/jokas3322/coro-code/internal/tool/builtin"
	"github.com/jokas3322/coro-code/internal/trajectory"
)

func main() {
	config.LoadEnv()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║             coro-code                 ║")
	fmt.Println("║   step-loop coding agent runtime      ║")
	fmt.Println("╚══════════════════════════════════════╝")

	task := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if task == "" {
		log.Fatalf("❌ usage: coro-code <task description>")
	}

	llmCfg, err := config.ResolveLlmConfig()
	if err != nil {
		log.Fatalf("❌ Failed to resolve LLM config: %v", err)
	}
	fmt.Printf("🤖 LLM: %s @ %s (%s)\n", llmCfg.Model, llmCfg.BaseURL, llmCfg.Protocol)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := llmdial.Dial(ctx, llmCfg)
	if err != nil {
		log.Fatalf("❌ Failed to dial LLM provider: %v", err)
	}

	workspaceDir := os.Getenv("WORKSPACE_DIR")
	if workspaceDir == "" {
		workspaceDir, _ = os.Getwd()
	}
	fmt.Printf("📂 Workspace: %s\n", workspaceDir)

	bus := event.NewBus()
	bus.Subscribe(event.NewTerminalSink(func(line string) { fmt.Println(line) }))

	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr != "" {
		metricsReg := prometheus.NewRegistry()
		bus.Subscribe(event.NewMetricsSink(metricsReg))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Printf("⚠️ metrics server stopped: %v", err)
			}
		}()
		fmt.Printf("📊 Metrics: http://%s/metrics\n", metricsAddr)
	}

	registry := tool.NewRegistry()
	registry.Register(builtin.NewBashTool(workspaceDir))
	registry.Register(builtin.NewEditTool(workspaceDir))
	registry.Register(builtin.NewJSONEditTool(workspaceDir))
	registry.Register(builtin.NewThinkingTool(nil))
	registry.Register(builtin.NewCKGTool(workspaceDir))
	registry.Register(builtin.NewTaskDoneTool())
	registry.Register(builtin.NewMCPTool(workspaceDir))
	registry.Register(builtin.NewGlobTool(workspaceDir))
	registry.Register(builtin.NewStatusReportTool(bus))

	if err := registry.InitAll(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize tools: %v", err)
	}
	defer registry.CloseAll()
	fmt.Printf("🛠️  Tools: %d registered\n", len(registry.List()))

	promptsDir := os.Getenv("PROMPTS_DIR")
	if promptsDir == "" {
		promptsDir = filepath.Join(workspaceDir, "prompts")
	}
	rulesPath := os.Getenv("USER_RULES_PATH")
	if rulesPath == "" {
		rulesPath = filepath.Join(workspaceDir, "rules.md")
	}
	soulPath := os.Getenv("SOUL_PATH")
	if soulPath == "" {
		soulPath = filepath.Join(workspaceDir, "soul.md")
	}
	promptLoader := prompt.NewPromptLoader(promptsDir, rulesPath, soulPath)

	logDir := filepath.Join(workspaceDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("⚠️ Failed to create log directory %q: %v", logDir, err)
	}
	recorder, err := trajectory.NewFileRecorder(filepath.Join(logDir, "trajectory.jsonl"))
	if err != nil {
		log.Printf("⚠️ Trajectory recorder disabled: %v", err)
	} else {
		defer recorder.Close()
		fmt.Printf("📝 Trajectory: logs/trajectory.jsonl\n")
	}
	var rec *trajectory.Recorder
	if recorder != nil {
		rec = recorder.Recorder
	}

	agentCfg := agentrun.DefaultAgentConfig()
	agentCfg.Tools = toolNames(registry)

	scheduler := agentrun.NewScheduler(client, registry, bus, rec, promptLoader, agentCfg)

	// Ctrl-C cancels the context; the scheduler observes it between steps.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n🛑 interrupt received, stopping after the current step...")
		cancel()
	}()

	result, runErr := scheduler.Run(ctx, task, workspaceDir)

	fmt.Printf("\n— %s after %d step(s) in %s —\n", statusWord(result.Success), result.Steps, result.Duration.Round(1e6))
	fmt.Printf("tokens: %d in / %d out / %d total\n", result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens)
	if runErr != nil {
		fmt.Printf("summary: %s\n", result.Summary)
		os.Exit(1)
	}
}

func statusWord(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func toolNames(registry *tool.Registry) []string {
	tools := registry.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}
