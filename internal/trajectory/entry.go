// Package trajectory implements the scheduler's append-only execution log:
// one Entry per notable event (task start, LLM call, tool call, step/task
// completion, error), durable enough to reconstruct a run after the fact.
package trajectory

import (
	"time"

	"github.com/google/uuid"
	"github.com/jokas3322/coro-code/internal/llm"
	"github.com/jokas3322/coro-code/internal/tool"
)

// Type discriminates the Entry tagged union.
type Type string

const (
	TypeTaskStart    Type = "task_start"
	TypeLlmRequest   Type = "llm_request"
	TypeLlmResponse  Type = "llm_response"
	TypeToolCall     Type = "tool_call"
	TypeToolResult   Type = "tool_result"
	TypeStepComplete Type = "step_complete"
	TypeTaskComplete Type = "task_complete"
	TypeError        Type = "error"
	TypeLog          Type = "log"
)

// LogLevel is the severity of a Log entry.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Entry is one record in the trajectory. Only the fields relevant to Type
// are populated; JSON field names use the `omitempty` tag so each Entry's
// on-disk line only carries its own variant's payload.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Step      int       `json:"step"`
	Type      Type      `json:"entry_type"`

	// TaskStart
	Task         string `json:"task,omitempty"`
	AgentConfig  any    `json:"agent_config,omitempty"`

	// LlmRequest
	Messages []llm.Message `json:"messages,omitempty"`
	Model    string        `json:"model,omitempty"`
	Provider string        `json:"provider,omitempty"`

	// LlmResponse
	Message      *llm.Message `json:"message,omitempty"`
	Usage        *llm.Usage   `json:"usage,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`

	// ToolCall
	Call *tool.Call `json:"call,omitempty"`

	// ToolResult
	Result *tool.Result `json:"result,omitempty"`

	// StepComplete
	StepSummary string `json:"step_summary,omitempty"`
	Success     bool   `json:"success,omitempty"`

	// TaskComplete
	FinalResult string `json:"final_result,omitempty"`
	TotalSteps  int    `json:"total_steps,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`

	// Error
	ErrorText string `json:"error,omitempty"`
	Context   string `json:"context,omitempty"`

	// Log
	Level   LogLevel `json:"level,omitempty"`
	LogText string   `json:"log_message,omitempty"`
}

// newEntry stamps a fresh id/timestamp; every constructor below funnels
// through it so id/timestamp assignment lives in exactly one place.
func newEntry(typ Type, step int) Entry {
	return Entry{ID: uuid.NewString(), Timestamp: time.Now().UTC(), Step: step, Type: typ}
}

// TaskStart records the beginning of a new task execution, step 0.
func TaskStart(task string, agentConfig any) Entry {
	e := newEntry(TypeTaskStart, 0)
	e.Task = task
	e.AgentConfig = agentConfig
	return e
}

// LlmRequest records the messages about to be sent to the provider.
func LlmRequest(messages []llm.Message, model, provider string, step int) Entry {
	e := newEntry(TypeLlmRequest, step)
	e.Messages = messages
	e.Model = model
	e.Provider = provider
	return e
}

// LlmResponse records a provider's reply.
func LlmResponse(message llm.Message, usage *llm.Usage, finishReason string, step int) Entry {
	e := newEntry(TypeLlmResponse, step)
	e.Message = &message
	e.Usage = usage
	e.FinishReason = finishReason
	return e
}

// ToolCall records one dispatched tool invocation.
func ToolCall(call tool.Call, step int) Entry {
	e := newEntry(TypeToolCall, step)
	e.Call = &call
	return e
}

// ToolResult records the outcome of a tool invocation.
func ToolResult(result tool.Result, step int) Entry {
	e := newEntry(TypeToolResult, step)
	e.Result = &result
	return e
}

// StepComplete records the end of one scheduler step.
func StepComplete(stepSummary string, success bool, step int) Entry {
	e := newEntry(TypeStepComplete, step)
	e.StepSummary = stepSummary
	e.Success = success
	return e
}

// TaskComplete records the end of the whole task.
func TaskComplete(success bool, finalResult string, totalSteps int, durationMs int64) Entry {
	e := newEntry(TypeTaskComplete, totalSteps)
	e.Success = success
	e.FinalResult = finalResult
	e.TotalSteps = totalSteps
	e.DurationMs = durationMs
	return e
}

// ErrorEntry records a failure that ended the current step (or the whole task).
func ErrorEntry(errText, context string, step int) Entry {
	e := newEntry(TypeError, step)
	e.ErrorText = errText
	e.Context = context
	return e
}

// Log records a free-form diagnostic line.
func Log(level LogLevel, message string, step int) Entry {
	e := newEntry(TypeLog, step)
	e.Level = level
	e.LogText = message
	return e
}
