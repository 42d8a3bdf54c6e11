package event

import (
	"fmt"
	"sync"
)

// NullSink discards every event. Used in tests and non-interactive modes
// where no consumer cares about progress.
type NullSink struct{}

func (NullSink) Emit(Event) {}

func (NullSink) SupportsOverwrite() bool { return false }

// TerminalSink formats events to stdout via a writer, overwriting the
// previous line's status dot (e.g. "Executing" → "Success") when the same
// execution_id completes. It does not implement real cursor control itself
// (that belongs to the terminal UI, out of scope); instead it tracks whether
// the last line printed was an in-progress dot for the same execution_id and
// prefixes a carriage return in that case, which is sufficient for a
// non-interactive terminal and is trivially replaceable by a real TUI sink
// implementing the same Sink interface.
type TerminalSink struct {
	mu           sync.Mutex
	write        func(string)
	lastExecID   string
	lastWasDot   bool
}

// NewTerminalSink creates a TerminalSink that writes formatted lines via write.
func NewTerminalSink(write func(string)) *TerminalSink {
	return &TerminalSink{write: write}
}

func (t *TerminalSink) SupportsOverwrite() bool { return true }

func (t *TerminalSink) Emit(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case KindExecutionStarted:
		t.write("=== execution started ===")
	case KindExecutionCompleted:
		status := "success"
		if !e.Success {
			status = "failure"
		}
		t.write(fmt.Sprintf("=== execution completed (%s): %s ===", status, e.Summary))
	case KindStepStarted:
		t.write(fmt.Sprintf("--- step %d ---", e.Step.StepNumber))
	case KindToolExecutionStarted:
		if isSilentTool(e.Tool.ToolName) {
			return
		}
		t.writeDot(e.Tool.ExecutionID, fmt.Sprintf("[%s] executing...", e.Tool.ToolName))
	case KindToolExecutionCompleted:
		if isSilentTool(e.Tool.ToolName) {
			return
		}
		dot := "success"
		if e.Tool.Status == ToolError {
			dot = "error"
		}
		if t.lastWasDot && t.lastExecID == e.Tool.ExecutionID {
			t.write(fmt.Sprintf("\r[%s] %s", e.Tool.ToolName, dot))
		} else {
			t.write(fmt.Sprintf("[%s] %s", e.Tool.ToolName, dot))
		}
		t.lastWasDot = false
	case KindAgentThinking:
		// Silent tool: no status dot, but the thought itself is surfaced
		// here. The TerminalSink always shows it; it applies no output-mode
		// gating of its own (§4.E Output modes).
		t.write(fmt.Sprintf("(thinking, step %d) %s", e.ThinkStep, e.ThinkText))
	case KindTokenUsageUpdated:
		t.write(fmt.Sprintf("tokens: %d in / %d out / %d total", e.Usage.InputTokens, e.Usage.OutputTokens, e.Usage.TotalTokens))
	case KindStatusUpdate:
		t.write("status: " + e.Content)
	case KindMessage:
		t.write(fmt.Sprintf("[%s] %s", e.Level, e.Content))
	}
}

func (t *TerminalSink) writeDot(execID, line string) {
	t.write(line)
	t.lastExecID = execID
	t.lastWasDot = true
}

// silentTools produces no Executing/Success status dot on the terminal —
// its output surfaces only via KindAgentThinking instead.
var silentTools = map[string]bool{
	"sequentialthinking": true,
}

func isSilentTool(name string) bool { return silentTools[name] }

// InteractiveSink forwards events into a bounded channel for consumption by
// an external driver (e.g. a TUI). Slow consumers drop events once the
// channel is full rather than blocking the scheduler — acceptable per the
// event bus's bounded-capacity contract, since every event the scheduler
// cares about for correctness is also durably recorded by the trajectory
// recorder.
type InteractiveSink struct {
	ch chan Event
}

// NewInteractiveSink creates an InteractiveSink with the given channel
// capacity.
func NewInteractiveSink(capacity int) *InteractiveSink {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &InteractiveSink{ch: make(chan Event, capacity)}
}

func (s *InteractiveSink) SupportsOverwrite() bool { return true }

func (s *InteractiveSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
		// Channel full: drop. The driver is falling behind; events are
		// advisory except where also recorded in the trajectory.
	}
}

// Events returns the receive-only channel the driver should range over.
func (s *InteractiveSink) Events() <-chan Event { return s.ch }

// Close closes the underlying channel. Must only be called once, after the
// scheduler is guaranteed to have stopped emitting.
func (s *InteractiveSink) Close() { close(s.ch) }
