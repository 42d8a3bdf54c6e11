package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jokas3322/coro-code/internal/llm"
)

// ResolveLlmConfig builds a llm.ResolvedLlmConfig from environment variables,
// applying per-protocol defaults (base URL, API key env var fallback) the
// way NewConfigFromEnv does for a single provider, generalized across all
// five protocol variants.
//
// Expected env vars:
//
//	LLM_PROTOCOL    one of openai, azure-openai, anthropic, google-ai, custom:<name> (default: openai)
//	LLM_MODEL       required
//	LLM_BASE_URL    optional; defaults to the protocol's DefaultBaseURL
//	LLM_API_KEY     preferred API key source; falls back to a protocol-specific var
//	                (OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY) if unset
func ResolveLlmConfig() (llm.ResolvedLlmConfig, error) {
	protocol, customName, err := resolveProtocol(getEnv("LLM_PROTOCOL", "openai"))
	if err != nil {
		return llm.ResolvedLlmConfig{}, err
	}

	cfg := llm.ResolvedLlmConfig{
		Protocol:   protocol,
		CustomName: customName,
		Model:      getEnv("LLM_MODEL", ""),
		BaseURL:    getEnv("LLM_BASE_URL", llm.DefaultBaseURL(protocol)),
		APIKey:     resolveAPIKey(protocol),
		Params:     map[string]any{},
		Headers:    map[string]string{},
	}

	if err := cfg.Validate(); err != nil {
		return llm.ResolvedLlmConfig{}, err
	}
	log.Printf("[Config] Resolved LLM config: protocol=%s model=%s base_url=%s", cfg.Protocol, cfg.Model, cfg.BaseURL)
	return cfg, nil
}

// resolveProtocol parses LLM_PROTOCOL, including the custom:<name> form.
func resolveProtocol(raw string) (llm.Protocol, string, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if name, ok := strings.CutPrefix(lower, "custom:"); ok {
		return llm.ProtocolCustom, name, nil
	}
	switch lower {
	case "openai", "openai-compat", "":
		return llm.ProtocolOpenAICompat, "", nil
	case "azure", "azure-openai":
		return llm.ProtocolAzureOpenAI, "", nil
	case "anthropic":
		return llm.ProtocolAnthropic, "", nil
	case "google", "google-ai", "gemini":
		return llm.ProtocolGoogleAI, "", nil
	case "custom":
		return llm.ProtocolCustom, "default", nil
	default:
		return 0, "", fmt.Errorf("LLM_PROTOCOL: unrecognized value %q", raw)
	}
}

// resolveAPIKey tries LLM_API_KEY first, falling back to a protocol-native
// env var name so existing provider-specific .env files keep working.
func resolveAPIKey(protocol llm.Protocol) string {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		return v
	}
	switch protocol {
	case llm.ProtocolAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case llm.ProtocolGoogleAI:
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
