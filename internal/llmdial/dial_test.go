package llmdial

import (
	"context"
	"testing"

	"github.com/jokas3322/coro-code/internal/llm"
)

func validConfig(protocol llm.Protocol) llm.ResolvedLlmConfig {
	return llm.ResolvedLlmConfig{
		Protocol: protocol,
		Model:    "test-model",
		BaseURL:  llm.DefaultBaseURL(protocol),
		APIKey:   "test-key",
	}
}

func TestDial_OpenAICompat(t *testing.T) {
	client, err := Dial(context.Background(), validConfig(llm.ProtocolOpenAICompat))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.ProviderName() == "" {
		t.Error("expected a non-empty provider name")
	}
}

func TestDial_Anthropic(t *testing.T) {
	client, err := Dial(context.Background(), validConfig(llm.ProtocolAnthropic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected a non-nil client")
	}
}

func TestDial_AzureUsesOpenAIClient(t *testing.T) {
	cfg := validConfig(llm.ProtocolAzureOpenAI)
	cfg.BaseURL = "https://my-resource.openai.azure.com"
	if _, err := Dial(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDial_CustomUsesOpenAIClient(t *testing.T) {
	cfg := validConfig(llm.ProtocolCustom)
	cfg.BaseURL = "https://api.groq.com/openai/v1"
	if _, err := Dial(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDial_InvalidConfigIsRejectedBeforeDispatch(t *testing.T) {
	cfg := validConfig(llm.ProtocolOpenAICompat)
	cfg.APIKey = ""
	if _, err := Dial(context.Background(), cfg); err == nil {
		t.Fatal("expected Dial to reject a config with no API key")
	}
}
