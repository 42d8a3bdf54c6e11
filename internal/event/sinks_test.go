package event

import "testing"

func TestTerminalSink_SilentToolProducesNoDot(t *testing.T) {
	var lines []string
	sink := NewTerminalSink(func(line string) { lines = append(lines, line) })

	sink.Emit(Event{Kind: KindToolExecutionStarted, Tool: ToolInfo{ExecutionID: "1", ToolName: "sequentialthinking", Status: ToolExecuting}})
	sink.Emit(Event{Kind: KindToolExecutionCompleted, Tool: ToolInfo{ExecutionID: "1", ToolName: "sequentialthinking", Status: ToolSuccess}})

	if len(lines) != 0 {
		t.Fatalf("expected no status dot lines for a silent tool, got %v", lines)
	}
}

func TestTerminalSink_OrdinaryToolProducesDots(t *testing.T) {
	var lines []string
	sink := NewTerminalSink(func(line string) { lines = append(lines, line) })

	sink.Emit(Event{Kind: KindToolExecutionStarted, Tool: ToolInfo{ExecutionID: "1", ToolName: "bash", Status: ToolExecuting}})
	sink.Emit(Event{Kind: KindToolExecutionCompleted, Tool: ToolInfo{ExecutionID: "1", ToolName: "bash", Status: ToolSuccess}})

	if len(lines) != 2 {
		t.Fatalf("expected a start dot and a completion dot for a non-silent tool, got %v", lines)
	}
}

func TestTerminalSink_ThinkingStillSurfacesViaAgentThinking(t *testing.T) {
	var lines []string
	sink := NewTerminalSink(func(line string) { lines = append(lines, line) })

	sink.Emit(Event{Kind: KindAgentThinking, ThinkStep: 1, ThinkText: "considering approach"})

	if len(lines) != 1 {
		t.Fatalf("expected exactly one thinking line, got %v", lines)
	}
}
