package agentrun

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jokas3322/coro-code/internal/tool"
)

func TestSummarizer_Bash(t *testing.T) {
	s := NewSummarizer()
	call := tool.Call{Name: "bash", Parameters: json.RawMessage(`{"command":"echo hi"}`)}
	got := s.Digest(call, tool.OK("1", "hi"))
	if !strings.Contains(got, "Bash(echo hi)") {
		t.Errorf("unexpected digest: %q", got)
	}
}

func TestSummarizer_BashFailureMarksError(t *testing.T) {
	s := NewSummarizer()
	call := tool.Call{Name: "bash", Parameters: json.RawMessage(`{"command":"false"}`)}
	got := s.Digest(call, tool.Failed("1", "exit status 1"))
	if !strings.HasPrefix(got, "✗") {
		t.Errorf("expected failure digest to start with the error marker, got %q", got)
	}
}

func TestSummarizer_EditVariants(t *testing.T) {
	s := NewSummarizer()
	cases := []struct {
		command string
		want    string
	}{
		{"view", "Read(main.go)"},
		{"create", "Create(main.go)"},
		{"str_replace", "Update(main.go)"},
		{"insert", "Update(main.go)"},
	}
	for _, c := range cases {
		call := tool.Call{
			Name:       "str_replace_based_edit_tool",
			Parameters: json.RawMessage(`{"command":"` + c.command + `","path":"/tmp/main.go"}`),
		}
		got := s.Digest(call, tool.OK("1", ""))
		if !strings.Contains(got, c.want) {
			t.Errorf("command=%s: expected digest to contain %q, got %q", c.command, c.want, got)
		}
	}
}

func TestSummarizer_SequentialThinkingIsSilent(t *testing.T) {
	s := NewSummarizer()
	call := tool.Call{Name: "sequentialthinking", Parameters: json.RawMessage(`{"thought":"hmm"}`)}
	if got := s.Digest(call, tool.OK("1", "hmm")); got != "" {
		t.Errorf("expected no digest for sequentialthinking, got %q", got)
	}
}

func TestSummarizer_LongCommandTruncates(t *testing.T) {
	s := NewSummarizer()
	long := strings.Repeat("x", digestMaxLen+20)
	call := tool.Call{Name: "bash", Parameters: json.RawMessage(`{"command":"` + long + `"}`)}
	got := s.Digest(call, tool.OK("1", ""))
	if !strings.Contains(got, "...") {
		t.Errorf("expected truncation marker in long digest, got %q", got)
	}
	if len(got) > digestMaxLen+20 {
		t.Errorf("digest was not truncated: %d bytes", len(got))
	}
}

func TestSummarizer_UnknownToolFallsBackToGeneric(t *testing.T) {
	s := NewSummarizer()
	call := tool.Call{Name: "some_future_tool", Parameters: json.RawMessage(`{}`)}
	got := s.Digest(call, tool.OK("1", ""))
	if !strings.Contains(got, "some_future_tool()") {
		t.Errorf("expected generic digest for unknown tool, got %q", got)
	}
}
