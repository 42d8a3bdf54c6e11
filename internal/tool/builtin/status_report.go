package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jokas3322/coro-code/internal/event"
	"github.com/jokas3322/coro-code/internal/tool"
)

// StatusReportTool lets the model push a real-time status line to the
// interactive driver's UI, independent of the Lakeview step digest (which
// only fires after a tool call completes). bus may be nil, in which case
// the tool still succeeds but has nothing to broadcast to.
type StatusReportTool struct {
	bus *event.Bus
}

// NewStatusReportTool creates a status_report tool that broadcasts to bus.
// Pass nil to build one with no UI to report to (Execute still succeeds).
func NewStatusReportTool(bus *event.Bus) *StatusReportTool {
	return &StatusReportTool{bus: bus}
}

func (t *StatusReportTool) Name() string { return "status_report" }
func (t *StatusReportTool) Description() string {
	return "Report current status to the user interface. You MUST use this tool every time you " +
		"change what you're doing or start a new action (e.g. 'Analyzing code', 'Searching files', " +
		"'Writing code', 'Running tests') to keep the user informed during long-running operations."
}

func (t *StatusReportTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "status", Type: "string", Description: "a short, action-oriented status, e.g. 'Analyzing code'", Required: true},
		tool.SchemaParam{Name: "details", Type: "string", Description: "optional additional context about the current operation"},
	)
}

func (t *StatusReportTool) RequiresConfirmation() bool   { return false }
func (t *StatusReportTool) Init(_ context.Context) error { return nil }
func (t *StatusReportTool) Close() error                 { return nil }

type statusReportArgs struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

func (t *StatusReportTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a statusReportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}
	if strings.TrimSpace(a.Status) == "" {
		return tool.Failed("", "status message cannot be empty"), nil
	}

	if t.bus != nil {
		t.bus.Emit(event.Event{Kind: event.KindStatusUpdate, Content: a.Status})
	}

	content := fmt.Sprintf("Status updated: %s", a.Status)
	if a.Details != "" {
		content = fmt.Sprintf("%s\nDetails: %s", content, a.Details)
	}
	result := tool.OK("", content)
	result.Data = map[string]any{"status": a.Status, "details": a.Details}
	return result, nil
}
