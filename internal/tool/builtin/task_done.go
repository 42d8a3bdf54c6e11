package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jokas3322/coro-code/internal/tool"
)

// TaskDoneTool is the task_done tool: the model's explicit signal that the
// task is complete. It always succeeds; the scheduler recognizes this tool
// by name and ends the step loop once it runs, rather than this tool
// having any side effect of its own.
type TaskDoneTool struct{}

func NewTaskDoneTool() *TaskDoneTool { return &TaskDoneTool{} }

func (t *TaskDoneTool) Name() string { return "task_done" }
func (t *TaskDoneTool) Description() string {
	return "Call this when the task is complete, with a summary of what was done."
}

func (t *TaskDoneTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "summary", Type: "string", Description: "a concise summary of what was accomplished", Required: true},
		tool.SchemaParam{Name: "details", Type: "string", Description: "optional additional detail"},
	)
}

func (t *TaskDoneTool) RequiresConfirmation() bool   { return false }
func (t *TaskDoneTool) Init(_ context.Context) error { return nil }
func (t *TaskDoneTool) Close() error                 { return nil }

type taskDoneArgs struct {
	Summary string `json:"summary"`
	Details string `json:"details,omitempty"`
}

func (t *TaskDoneTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a taskDoneArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}

	content := a.Summary
	if a.Details != "" {
		content = fmt.Sprintf("%s\n\n%s", a.Summary, a.Details)
	}
	result := tool.OK("", content)
	result.Data = map[string]any{"summary": a.Summary, "details": a.Details}
	return result, nil
}
