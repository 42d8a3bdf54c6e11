// Package agentrun implements the bounded reason-act loop that drives one
// agent task from a task string to a terminal state: the step scheduler,
// its cost/context/loop-repetition guards, the Lakeview-style step
// digest, and system prompt composition.
package agentrun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jokas3322/coro-code/internal/event"
	"github.com/jokas3322/coro-code/internal/llm"
	"github.com/jokas3322/coro-code/internal/prompt"
	"github.com/jokas3322/coro-code/internal/tool"
	"github.com/jokas3322/coro-code/internal/trajectory"
)

// RunResult is the terminal outcome of one Scheduler.Run call.
type RunResult struct {
	Success  bool
	Summary  string
	Steps    int
	Duration time.Duration
	Usage    llm.Usage
}

// Scheduler drives a single agent task through the bounded step loop
// described in the Step Scheduler component: one chat_completion call per
// step, tool uses dispatched strictly in order, no inline re-looping after
// tool execution within the same step.
type Scheduler struct {
	client   llm.Client
	registry *tool.Registry
	executor *tool.Executor
	bus      *event.Bus
	recorder *trajectory.Recorder
	loader   *prompt.PromptLoader
	cfg      AgentConfig

	contextGuard *ContextGuard
	costGuard    *CostGuard
	loopDetector *loopDetector
	summarizer   *Summarizer
}

// NewScheduler builds a Scheduler. recorder and loader may be nil: a nil
// recorder silently drops trajectory entries, a nil loader falls back to a
// minimal default system prompt with no soul/rules content.
func NewScheduler(client llm.Client, registry *tool.Registry, bus *event.Bus, recorder *trajectory.Recorder, loader *prompt.PromptLoader, cfg AgentConfig) *Scheduler {
	return &Scheduler{
		client:       client,
		registry:     registry,
		executor:     tool.NewExecutor(registry),
		bus:          bus,
		recorder:     recorder,
		loader:       loader,
		cfg:          cfg,
		contextGuard: NewContextGuard(cfg.ContextWindow),
		costGuard:    NewCostGuard(cfg.MaxTokens, time.Duration(cfg.MaxDuration)),
		loopDetector: newLoopDetector(),
		summarizer:   NewSummarizer(),
	}
}

// record is a nil-safe trajectory.Recorder.Record.
func (s *Scheduler) record(e trajectory.Entry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(e); err != nil {
		s.emit(event.Debug(fmt.Sprintf("trajectory: %v", err)))
	}
}

// emit is a nil-safe event.Bus.Emit.
func (s *Scheduler) emit(e event.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(e)
}

// Run drives task to completion (or a terminal failure) against
// projectPath as the working-directory context fed into the default
// system prompt. It returns a non-nil error exactly when the task did not
// reach task_done success: a *StepBudgetExceededError, *InterruptedError,
// or *LlmFailureError, or a cost/context guard's plain error.
func (s *Scheduler) Run(ctx context.Context, task, projectPath string) (RunResult, error) {
	start := time.Now()

	toolNames := s.toolNames()
	systemPrompt := BuildSystemPrompt(s.cfg.SystemPrompt, projectPath, toolNames, s.loader)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: task},
	}

	var usage llm.Usage
	var toolHistory []StepRecord
	step := 0

	s.emit(event.Event{Kind: event.KindExecutionStarted})
	s.record(trajectory.TaskStart(task, s.cfg))

	var taskComplete bool
	var terminalErr error

	for step < s.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			terminalErr = &InterruptedError{Step: step}
			s.record(trajectory.ErrorEntry("interrupted", "interrupted by user", step))
			break
		}

		step++
		messages = ensureSystemMessage(messages, systemPrompt)

		toolDefs := s.registry.GenerateToolDefinitions()
		s.emit(event.Event{Kind: event.KindStepStarted, Step: event.StepInfo{StepNumber: step}})
		s.record(trajectory.LlmRequest(messages, s.client.ModelName(), s.client.ProviderName(), step))

		resp, err := s.client.ChatCompletion(ctx, messages, toolDefs, llm.DefaultOptions())
		if err != nil {
			terminalErr = &LlmFailureError{Step: step, Err: err}
			s.record(trajectory.ErrorEntry(err.Error(), fmt.Sprintf("llm request failed at step %d", step), step))
			s.emit(event.ErrorMsg(err.Error()))
			break
		}

		stepTokens := s.accumulateUsage(&usage, resp)

		s.record(trajectory.LlmResponse(resp.Message, resp.Usage, finishReasonString(resp), step))
		messages = append(messages, resp.Message)

		toolUses := resp.Message.ToolUses()
		stepOK := true

		if len(toolUses) > 0 {
			for _, block := range toolUses {
				call := tool.Call{ID: block.ID, Name: block.Name, Parameters: block.Input}
				result := s.runTool(ctx, call, step)

				toolHistory = append(toolHistory, StepRecord{
					ToolName: call.Name,
					Input:    string(call.Parameters),
					IsError:  !result.Success,
				})
				if d := s.loopDetector.check(toolHistory); d.Detected {
					s.emit(event.Warning(d.Description))
					s.record(trajectory.Log(trajectory.LogWarn, d.Description, step))
				}

				messages = append(messages, llm.Message{
					Role:   llm.RoleTool,
					Blocks: []llm.ContentBlock{llm.ToolResultBlock(call.ID, !result.Success, result.Content)},
				})

				if !result.Success {
					stepOK = false
				}
				if call.Name == "task_done" && result.Success {
					taskComplete = true
				}
				if taskComplete {
					break
				}
			}
		} else if text := resp.Message.Text(); text != "" {
			s.emit(event.Normal(text))
		}

		s.record(trajectory.StepComplete(stepSummary(resp, toolUses), stepOK, step))

		if taskComplete {
			break
		}

		if err := s.costGuard.RecordTokens(stepTokens); err != nil {
			terminalErr = err
			break
		}
		if err := s.costGuard.CheckDuration(); err != nil {
			terminalErr = err
			break
		}
		switch s.contextGuard.CheckTokens(int(usage.TotalTokens)) {
		case ContextCritical:
			s.emit(event.Warning("context window nearing capacity"))
		case ContextWarning:
			s.emit(event.Debug("context window usage elevated"))
		}
	}

	if terminalErr == nil && !taskComplete {
		terminalErr = &StepBudgetExceededError{Steps: step}
	}

	duration := time.Since(start)
	result := RunResult{Success: taskComplete, Steps: step, Duration: duration, Usage: usage}

	if taskComplete {
		result.Summary = "task completed"
	} else {
		result.Summary = terminalSummary(terminalErr)
	}

	s.emit(event.Event{Kind: event.KindExecutionCompleted, Success: result.Success, Summary: result.Summary})
	s.record(trajectory.TaskComplete(result.Success, result.Summary, step, duration.Milliseconds()))

	if taskComplete {
		return result, nil
	}
	return result, terminalErr
}

// runTool executes a single tool call, emitting the Started/Completed
// events, recording the ToolCall/ToolResult trajectory entries, handling
// the sequentialthinking AgentThinking extraction, and (when
// AgentConfig.EnableLakeview is set) emitting a one-line digest as a
// StatusUpdate event.
func (s *Scheduler) runTool(ctx context.Context, call tool.Call, step int) tool.Result {
	executionID := uuid.NewString()

	s.emit(event.Event{Kind: event.KindToolExecutionStarted, Tool: event.ToolInfo{
		ExecutionID: executionID,
		ToolName:    call.Name,
		Parameters:  string(call.Parameters),
		Status:      event.ToolExecuting,
		Timestamp:   time.Now(),
	}})
	s.record(trajectory.ToolCall(call, step))

	results := s.executor.Run(ctx, []tool.Call{call}, nil, nil)
	result := results[0]

	status := event.ToolSuccess
	if !result.Success {
		status = event.ToolError
	}
	s.emit(event.Event{Kind: event.KindToolExecutionCompleted, Tool: event.ToolInfo{
		ExecutionID: executionID,
		ToolName:    call.Name,
		Parameters:  string(call.Parameters),
		Status:      status,
		Result:      result.Content,
		Timestamp:   time.Now(),
	}})

	if call.Name == "sequentialthinking" {
		thought, _ := result.Data["thought"].(string)
		if thought == "" {
			thought = result.Content
		}
		s.emit(event.Event{Kind: event.KindAgentThinking, ThinkStep: step, ThinkText: thought})
	}

	s.record(trajectory.ToolResult(result, step))

	if s.cfg.EnableLakeview {
		if digest := s.summarizer.Digest(call, result); digest != "" {
			s.emit(event.Event{Kind: event.KindStatusUpdate, Content: digest})
		}
	}

	return result
}

// toolNames returns the registered tool names in the order the registry
// lists them, for the "Available tools: ..." suffix of the system prompt.
func (s *Scheduler) toolNames() []string {
	tools := s.registry.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// accumulateUsage adds a response's reported usage to the running total,
// falling back to a character-based estimate when the provider reports
// none, emits TokenUsageUpdated, and returns this step's own token count
// (not the running total) for the cost guard's per-step accounting.
func (s *Scheduler) accumulateUsage(total *llm.Usage, resp llm.Response) int {
	var stepTotal int
	if resp.Usage != nil {
		total.InputTokens += resp.Usage.InputTokens
		total.OutputTokens += resp.Usage.OutputTokens
		total.TotalTokens += resp.Usage.TotalTokens
		stepTotal = resp.Usage.TotalTokens
	} else {
		est := estimateTokens(resp.Message.Text())
		total.OutputTokens += est
		total.TotalTokens += est
		stepTotal = est
	}
	s.emit(event.Event{Kind: event.KindTokenUsageUpdated, Usage: event.TokenUsage{
		InputTokens:  total.InputTokens,
		OutputTokens: total.OutputTokens,
		TotalTokens:  total.TotalTokens,
	}})
	return stepTotal
}

// ensureSystemMessage defensively prepends systemPrompt as Message[0] if
// it is missing or was overwritten — the canonical path always keeps it in
// place, this only guards against a degenerate caller-mutated slice.
func ensureSystemMessage(messages []llm.Message, systemPrompt string) []llm.Message {
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		return messages
	}
	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	out = append(out, messages...)
	return out
}

func finishReasonString(resp llm.Response) string {
	switch resp.FinishReason {
	case llm.FinishStop:
		return "stop"
	case llm.FinishLength:
		return "length"
	case llm.FinishToolCalls:
		return "tool_calls"
	case llm.FinishContentFilter:
		return "content_filter"
	case llm.FinishOther:
		return resp.OtherReason
	default:
		return "unknown"
	}
}

func stepSummary(resp llm.Response, toolUses []llm.ContentBlock) string {
	if len(toolUses) == 0 {
		return "reasoning step, no tool use"
	}
	return fmt.Sprintf("%d tool call(s) dispatched", len(toolUses))
}

func terminalSummary(err error) string {
	switch e := err.(type) {
	case *InterruptedError:
		return "interrupted by user"
	case *StepBudgetExceededError:
		return fmt.Sprintf("incomplete after %d steps", e.Steps)
	case *LlmFailureError:
		return fmt.Sprintf("llm request failed: %v", e.Err)
	default:
		if err != nil {
			return err.Error()
		}
		return "incomplete"
	}
}
