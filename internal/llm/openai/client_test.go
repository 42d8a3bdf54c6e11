package openai

import (
	"encoding/json"
	"net/http"
	"testing"

	openailib "github.com/sashabaranov/go-openai"

	"github.com/jokas3322/coro-code/internal/llm"
)

func TestToOpenAIMessages_ToolRoleRequiresResultBlock(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleTool, Blocks: []llm.ContentBlock{llm.ToolResultBlock("call_1", false, "ok")}},
	}
	out, err := toOpenAIMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Role != openailib.ChatMessageRoleTool || out[0].ToolCallID != "call_1" {
		t.Fatalf("unexpected translation: %+v", out)
	}
}

func TestToOpenAIMessages_ToolRoleWithoutResultErrors(t *testing.T) {
	messages := []llm.Message{{Role: llm.RoleTool}}
	if _, err := toOpenAIMessages(messages); err == nil {
		t.Fatal("expected an error for a tool-role message with no ToolResult block")
	}
}

func TestToOpenAIMessages_AssistantToolUseBecomesToolCall(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleAssistant, Blocks: []llm.ContentBlock{
			llm.TextBlock("let me check"),
			llm.ToolUseBlock("call_1", "bash", json.RawMessage(`{"command":"ls"}`)),
		}},
	}
	out, err := toOpenAIMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || len(out[0].ToolCalls) != 1 {
		t.Fatalf("unexpected translation: %+v", out)
	}
	if out[0].ToolCalls[0].Function.Name != "bash" {
		t.Errorf("expected function name bash, got %q", out[0].ToolCalls[0].Function.Name)
	}
}

func TestFromFinishReason(t *testing.T) {
	cases := map[openailib.FinishReason]llm.FinishReason{
		openailib.FinishReasonStop:          llm.FinishStop,
		openailib.FinishReasonLength:        llm.FinishLength,
		openailib.FinishReasonToolCalls:     llm.FinishToolCalls,
		openailib.FinishReasonContentFilter: llm.FinishContentFilter,
		openailib.FinishReason("weird"):     llm.FinishOther,
	}
	for in, want := range cases {
		if got := fromFinishReason(in); got != want {
			t.Errorf("fromFinishReason(%v) = %v, want %v", in, got, want)
		}
	}
}

// roundTripFunc lets a plain function satisfy http.RoundTripper without a
// real network call, matching headerTransport's one dependency.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestHeaderTransport_InjectsConfiguredHeaders(t *testing.T) {
	var seen http.Header
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req.Header
		return &http.Response{StatusCode: 200}, nil
	})
	tr := &headerTransport{base: base, headers: map[string]string{"X-Tenant-Id": "acme"}}

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.Get("X-Tenant-Id") != "acme" {
		t.Errorf("expected X-Tenant-Id header to be injected, got %q", seen.Get("X-Tenant-Id"))
	}
}
