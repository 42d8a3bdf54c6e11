package builtin

import (
	"context"
	"encoding/json"
	"testing"
)

func TestThinkingTool_RejectsZeroThoughtNumber(t *testing.T) {
	tt := NewThinkingTool(nil)
	args, _ := json.Marshal(thoughtEntry{Thought: "x", ThoughtNumber: 0, TotalThoughts: 1, NextThoughtNeeded: false})
	result, err := tt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for thought_number < 1")
	}
}

func TestThinkingTool_ClampsTotalThoughtsUpToThoughtNumber(t *testing.T) {
	tt := NewThinkingTool(nil)
	args, _ := json.Marshal(thoughtEntry{Thought: "x", ThoughtNumber: 5, TotalThoughts: 2, NextThoughtNeeded: true})
	result, err := tt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Content)
	}
	if result.Data["total_thoughts"] != 5 {
		t.Errorf("expected total_thoughts clamped to 5, got %v", result.Data["total_thoughts"])
	}
}

func TestThinkingTool_RevisionRequiresRevisesThought(t *testing.T) {
	tt := NewThinkingTool(nil)
	args, _ := json.Marshal(thoughtEntry{Thought: "x", ThoughtNumber: 2, TotalThoughts: 2, NextThoughtNeeded: false, IsRevision: true})
	result, err := tt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when is_revision is set without revises_thought")
	}
}

func TestThinkingTool_TracksBranchKeys(t *testing.T) {
	tt := NewThinkingTool(nil)
	first, _ := json.Marshal(thoughtEntry{Thought: "a", ThoughtNumber: 1, TotalThoughts: 2, NextThoughtNeeded: true, BranchID: "alt"})
	if _, err := tt.Execute(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := json.Marshal(thoughtEntry{Thought: "b", ThoughtNumber: 2, TotalThoughts: 2, NextThoughtNeeded: false, BranchID: "alt"})
	result, err := tt.Execute(context.Background(), second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	branches, ok := result.Data["branches"].([]string)
	if !ok || len(branches) != 1 || branches[0] != "alt" {
		t.Errorf("expected branches=[alt], got %v", result.Data["branches"])
	}
	if result.Data["thought_history_length"] != 2 {
		t.Errorf("expected history length 2, got %v", result.Data["thought_history_length"])
	}
}

func TestThinkingTool_InvokesOnThoughtCallback(t *testing.T) {
	var captured string
	tt := NewThinkingTool(func(thought string, thoughtNumber, totalThoughts int, nextNeeded bool) {
		captured = thought
	})
	args, _ := json.Marshal(thoughtEntry{Thought: "hello", ThoughtNumber: 1, TotalThoughts: 1, NextThoughtNeeded: false})
	if _, err := tt.Execute(context.Background(), args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured != "hello" {
		t.Errorf("expected callback to observe the thought text, got %q", captured)
	}
}
