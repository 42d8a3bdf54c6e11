package agentrun

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/jokas3322/coro-code/internal/tool"
	"github.com/jokas3322/coro-code/internal/util"
)

// digestMaxLen bounds how much of a tool's raw content feeds into a digest
// line before it gets truncated — a digest is a glanceable tag, not a log.
const digestMaxLen = 80

// Summarizer renders a one-line, human-glanceable digest of a completed
// tool call — e.g. "Bash(ls -la)" or "Edit(main.go): replaced 1 occurrence"
// — for sinks that display a running step-by-step narrative rather than raw
// tool output. It makes no LLM call: the digest is assembled deterministically
// from the call's own parameters and result, the same way a terminal status
// line is built from a command and its exit state.
//
// Summarizer is only consulted when AgentConfig.EnableLakeview is true; the
// scheduler still records the full, unabridged ToolResult in the trajectory
// either way.
type Summarizer struct{}

// NewSummarizer creates a Summarizer. It holds no state.
func NewSummarizer() *Summarizer { return &Summarizer{} }

// Digest renders the one-line summary for a completed tool call.
func (Summarizer) Digest(call tool.Call, result tool.Result) string {
	switch call.Name {
	case "bash":
		return digestBash(call, result)
	case "str_replace_based_edit_tool":
		return digestEdit(call, result)
	case "json_edit_tool":
		return digestJSONEdit(call, result)
	case "sequentialthinking":
		return "" // silent tool — no digest line, see spec §4.C.4
	case "ckg_tool":
		return digestGeneric("ckg_tool", subcommand(call), result)
	case "task_done":
		return digestGeneric("task_done", "", result)
	case "mcp_tool":
		return digestGeneric("mcp_tool", subcommand(call), result)
	case "glob":
		return digestGeneric("glob", "", result)
	default:
		return digestGeneric(call.Name, "", result)
	}
}

func digestBash(call tool.Call, result tool.Result) string {
	var a struct {
		Command string `json:"command"`
	}
	_ = json.Unmarshal(call.Parameters, &a)
	status := statusDot(result.Success)
	return status + " Bash(" + util.TruncateRunes(strings.TrimSpace(a.Command), digestMaxLen) + ")"
}

func digestEdit(call tool.Call, result tool.Result) string {
	var a struct {
		Command string `json:"command"`
		Path    string `json:"path"`
	}
	_ = json.Unmarshal(call.Parameters, &a)
	name := filepath.Base(a.Path)
	status := statusDot(result.Success)

	switch a.Command {
	case "view":
		return status + " Read(" + name + ")"
	case "create":
		return status + " Create(" + name + ")"
	case "str_replace", "insert":
		return status + " Update(" + name + ")"
	default:
		return status + " " + call.Name + "(" + name + ")"
	}
}

func digestJSONEdit(call tool.Call, result tool.Result) string {
	var a struct {
		Operation string `json:"operation"`
		FilePath  string `json:"file_path"`
	}
	_ = json.Unmarshal(call.Parameters, &a)
	name := filepath.Base(a.FilePath)
	status := statusDot(result.Success)
	return status + " JSONEdit(" + name + " " + a.Operation + ")"
}

func digestGeneric(name, sub string, result tool.Result) string {
	status := statusDot(result.Success)
	if sub != "" {
		return status + " " + name + "(" + sub + ")"
	}
	return status + " " + name + "()"
}

func subcommand(call tool.Call) string {
	var a struct {
		Operation string `json:"operation"`
	}
	_ = json.Unmarshal(call.Parameters, &a)
	return a.Operation
}

func statusDot(success bool) string {
	if success {
		return "⏺" // ⏺ success
	}
	return "✗" // ✗ error
}
