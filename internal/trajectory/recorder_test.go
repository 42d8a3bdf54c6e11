package trajectory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jokas3322/coro-code/internal/tool"
)

func TestRecorder_RecordWritesOneJSONLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)

	if err := r.Record(TaskStart("build a thing", map[string]any{"max_steps": 10})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Record(StepComplete("step 1 done", true, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first Entry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not valid JSON: %v", err)
	}
	if first.Type != TypeTaskStart || first.Task != "build a thing" {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.ID == "" {
		t.Error("expected a non-empty id")
	}
}

func TestRecorder_ToolCallRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)

	call := tool.Call{ID: "abc", Name: "bash", Parameters: []byte(`{"command":"ls"}`)}
	if err := r.Record(ToolCall(call, 3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	if !scanner.Scan() {
		t.Fatal("expected a line")
	}
	var e Entry
	if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if e.Call == nil || e.Call.Name != "bash" {
		t.Errorf("expected call.name=bash, got %+v", e.Call)
	}
	if e.Step != 3 {
		t.Errorf("expected step 3, got %d", e.Step)
	}
}

func TestRecorder_ErrorEntryCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)

	if err := r.Record(ErrorEntry("boom", "step 2", 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var e Entry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if e.ErrorText != "boom" || e.Context != "step 2" {
		t.Errorf("unexpected entry: %+v", e)
	}
}
