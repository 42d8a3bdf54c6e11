package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jokas3322/coro-code/internal/tool"
)

// ThinkingTool is the sequentialthinking tool: a scratchpad the model
// narrates a reasoning chain into, with revision and branching semantics.
// It carries no visible terminal output — sinks render it via a distinct
// AgentThinking event rather than a ToolExecutionStarted/Completed pair.
type ThinkingTool struct {
	mu       sync.Mutex
	history  []thoughtEntry
	branches map[string][]thoughtEntry

	// onThought, when set, is invoked once per successful call. The
	// scheduler does not use it: it builds the AgentThinking bus event from
	// the result's data.
	onThought func(thoughtEntry)
}

type thoughtEntry struct {
	Thought           string `json:"thought"`
	ThoughtNumber     int    `json:"thought_number"`
	TotalThoughts     int    `json:"total_thoughts"`
	NextThoughtNeeded bool   `json:"next_thought_needed"`
	IsRevision        bool   `json:"is_revision,omitempty"`
	RevisesThought    int    `json:"revises_thought,omitempty"`
	BranchFromThought int    `json:"branch_from_thought,omitempty"`
	BranchID          string `json:"branch_id,omitempty"`
	NeedsMoreThoughts bool   `json:"needs_more_thoughts,omitempty"`
}

// NewThinkingTool creates a thinking scratchpad tool. onThought may be nil.
func NewThinkingTool(onThought func(thought string, thoughtNumber, totalThoughts int, nextNeeded bool)) *ThinkingTool {
	t := &ThinkingTool{branches: make(map[string][]thoughtEntry)}
	if onThought != nil {
		t.onThought = func(e thoughtEntry) {
			onThought(e.Thought, e.ThoughtNumber, e.TotalThoughts, e.NextThoughtNeeded)
		}
	}
	return t
}

func (t *ThinkingTool) Name() string { return "sequentialthinking" }
func (t *ThinkingTool) Description() string {
	return "A scratchpad for working through a problem step by step. Each call " +
		"records one thought; set next_thought_needed=false once the reasoning " +
		"chain is complete. Supports revising an earlier thought (is_revision, " +
		"revises_thought) and branching an alternative line of reasoning " +
		"(branch_from_thought, branch_id)."
}

func (t *ThinkingTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "thought", Type: "string", Description: "the current reasoning step", Required: true},
		tool.SchemaParam{Name: "thought_number", Type: "integer", Description: "1-indexed position of this thought", Required: true},
		tool.SchemaParam{Name: "total_thoughts", Type: "integer", Description: "current estimate of how many thoughts this chain needs", Required: true},
		tool.SchemaParam{Name: "next_thought_needed", Type: "boolean", Description: "whether another thought should follow this one", Required: true},
		tool.SchemaParam{Name: "is_revision", Type: "boolean", Description: "true if this thought revises an earlier one"},
		tool.SchemaParam{Name: "revises_thought", Type: "integer", Description: "thought_number being revised, required when is_revision=true"},
		tool.SchemaParam{Name: "branch_from_thought", Type: "integer", Description: "thought_number this branch diverges from"},
		tool.SchemaParam{Name: "branch_id", Type: "string", Description: "identifier for this branch of reasoning"},
		tool.SchemaParam{Name: "needs_more_thoughts", Type: "boolean", Description: "true if total_thoughts should be revised upward"},
	)
}

func (t *ThinkingTool) RequiresConfirmation() bool   { return false }
func (t *ThinkingTool) Init(_ context.Context) error { return nil }
func (t *ThinkingTool) Close() error                 { return nil }

func (t *ThinkingTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var e thoughtEntry
	if err := json.Unmarshal(args, &e); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}

	if e.ThoughtNumber < 1 {
		return tool.Failed("", "thought_number must be >= 1"), nil
	}
	if e.TotalThoughts < 1 {
		return tool.Failed("", "total_thoughts must be >= 1"), nil
	}
	if e.TotalThoughts < e.ThoughtNumber {
		e.TotalThoughts = e.ThoughtNumber
	}
	if e.IsRevision && e.RevisesThought < 1 {
		return tool.Failed("", "is_revision requires revises_thought >= 1"), nil
	}

	t.mu.Lock()
	t.history = append(t.history, e)
	branchKeys := make([]string, 0, len(t.branches))
	if e.BranchID != "" {
		t.branches[e.BranchID] = append(t.branches[e.BranchID], e)
	}
	for k := range t.branches {
		branchKeys = append(branchKeys, k)
	}
	sort.Strings(branchKeys)
	historyLen := len(t.history)
	t.mu.Unlock()

	if t.onThought != nil {
		t.onThought(e)
	}

	status := map[string]any{
		"thought":                e.Thought,
		"thought_number":         e.ThoughtNumber,
		"total_thoughts":         e.TotalThoughts,
		"next_thought_needed":    e.NextThoughtNeeded,
		"branches":               branchKeys,
		"thought_history_length": historyLen,
	}
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return tool.Failed("", fmt.Sprintf("failed to render status: %v", err)), nil
	}

	result := tool.OK("", strings.TrimSpace(string(statusJSON)))
	result.Data = status
	return result, nil
}
