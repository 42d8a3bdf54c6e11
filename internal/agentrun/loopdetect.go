package agentrun

import (
	"crypto/md5"
	"fmt"
)

// loopWindowSize bounds how many recent tool calls checkSameToolFrequency
// considers; loopSameToolLimit/loopConsecErrorLimit are the trigger counts.
const (
	loopWindowSize       = 8
	loopSameToolLimit    = 3
	loopConsecErrorLimit = 3
)

// StepRecord is one tool call in the running history checkLoop scans.
type StepRecord struct {
	ToolName string
	Input    string // raw JSON arguments, used only for dedup hashing
	IsError  bool
}

// LoopDetection describes a detected repetition pattern. It is advisory: the
// scheduler emits it as a Warning event and a trajectory Log entry, it never
// aborts the step loop on its own — only the model (seeing the warning) or
// the step/cost budgets can end the task.
type LoopDetection struct {
	Detected    bool
	Rule        string // "same_tool_freq" | "repeated_params" | "consecutive_errors"
	Description string
	ToolName    string
}

// loopDetector is stateless: every check re-scans the history slice handed
// to it, so it carries no fields of its own.
type loopDetector struct{}

// newLoopDetector returns a ready-to-use detector.
func newLoopDetector() *loopDetector { return &loopDetector{} }

// check runs the detection rules in order against the tail of history;
// the first rule to fire wins.
func (loopDetector) check(history []StepRecord) LoopDetection {
	if len(history) < 2 {
		return LoopDetection{}
	}

	if d := checkSameToolFrequency(history); d.Detected {
		return d
	}
	if d := checkRepeatedParams(history); d.Detected {
		return d
	}
	if d := checkConsecutiveErrors(history); d.Detected {
		return d
	}
	return LoopDetection{}
}

// checkSameToolFrequency flags a tool name + argument hash that recurs
// loopSameToolLimit times or more within the last loopWindowSize calls.
func checkSameToolFrequency(history []StepRecord) LoopDetection {
	window := recentWindow(history, loopWindowSize)

	type key struct{ name, hash string }
	freq := make(map[key]int, len(window))
	for _, s := range window {
		k := key{s.ToolName, hashInput(s.Input)}
		freq[k]++
	}

	for k, count := range freq {
		if count >= loopSameToolLimit {
			return LoopDetection{
				Detected:    true,
				Rule:        "same_tool_freq",
				Description: fmt.Sprintf("%s was called %d times with the same arguments in the last %d tool calls", k.name, count, len(window)),
				ToolName:    k.name,
			}
		}
	}
	return LoopDetection{}
}

// checkRepeatedParams flags two consecutive calls to the same tool with
// byte-identical arguments — a narrower, immediate signal that doesn't need
// to wait for the frequency window to fill up.
func checkRepeatedParams(history []StepRecord) LoopDetection {
	last := history[len(history)-1]
	prev := history[len(history)-2]

	if last.ToolName != prev.ToolName || last.Input != prev.Input {
		return LoopDetection{}
	}
	return LoopDetection{
		Detected:    true,
		Rule:        "repeated_params",
		Description: fmt.Sprintf("%s was called twice in a row with identical arguments", last.ToolName),
		ToolName:    last.ToolName,
	}
}

// checkConsecutiveErrors flags loopConsecErrorLimit or more trailing tool
// calls that all failed, regardless of which tool.
func checkConsecutiveErrors(history []StepRecord) LoopDetection {
	if len(history) < loopConsecErrorLimit {
		return LoopDetection{}
	}
	tail := history[len(history)-loopConsecErrorLimit:]
	for _, s := range tail {
		if !s.IsError {
			return LoopDetection{}
		}
	}
	return LoopDetection{
		Detected:    true,
		Rule:        "consecutive_errors",
		Description: fmt.Sprintf("the last %d tool calls all failed", loopConsecErrorLimit),
	}
}

func recentWindow(history []StepRecord, n int) []StepRecord {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// hashInput collapses a tool call's raw JSON arguments to a fixed-size key
// for frequency counting; the dedup key never needs to be reversible.
func hashInput(input string) string {
	// #nosec G401 -- used only for deduplication, not security
	h := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", h)
}
