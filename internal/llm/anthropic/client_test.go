package anthropic

import (
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/jokas3322/coro-code/internal/llm"
)

func TestExtractSystem_SeparatesSystemMessages(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "hello"},
	}
	system, rest := extractSystem(messages)
	if len(system) != 1 || system[0].Text != "be terse" {
		t.Fatalf("unexpected system blocks: %+v", system)
	}
	if len(rest) != 1 || rest[0].Role != llm.RoleUser {
		t.Fatalf("unexpected rest: %+v", rest)
	}
}

func TestToAnthropicMessages_ToolRoleBecomesUser(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleTool, Blocks: []llm.ContentBlock{llm.ToolResultBlock("call_1", false, "ok")}},
	}
	out, err := toAnthropicMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Role != sdk.MessageParamRoleUser {
		t.Fatalf("expected tool-role message to become a user message, got %+v", out)
	}
}

func TestToAnthropicBlocks_RejectsMalformedToolInput(t *testing.T) {
	msg := llm.Message{Role: llm.RoleAssistant, Blocks: []llm.ContentBlock{
		llm.ToolUseBlock("id1", "bash", json.RawMessage(`{not json`)),
	}}
	if _, err := toAnthropicBlocks(msg); err == nil {
		t.Fatal("expected an error for malformed tool_use input")
	}
}
