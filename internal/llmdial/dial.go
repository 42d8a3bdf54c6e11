// Package llmdial resolves a ResolvedLlmConfig to a concrete provider
// client. It lives outside internal/llm itself because each provider
// package imports internal/llm for the shared Message/Client types — a
// dispatcher living inside internal/llm that also imported the provider
// packages would be an import cycle.
package llmdial

import (
	"context"
	"fmt"

	"github.com/jokas3322/coro-code/internal/llm"
	"github.com/jokas3322/coro-code/internal/llm/anthropic"
	"github.com/jokas3322/coro-code/internal/llm/google"
	"github.com/jokas3322/coro-code/internal/llm/openai"
)

// Dial resolves cfg.Protocol to a concrete provider client. OpenAICompat,
// AzureOpenAI, and Custom all speak the OpenAI-compatible wire format, so
// they share the openai package's client, differing only in BaseURL/Headers
// (already resolved onto cfg by the caller). Anthropic and GoogleAI get
// their own native clients.
func Dial(ctx context.Context, cfg llm.ResolvedLlmConfig) (llm.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Protocol {
	case llm.ProtocolOpenAICompat, llm.ProtocolAzureOpenAI, llm.ProtocolCustom:
		return openai.NewClient(cfg)
	case llm.ProtocolAnthropic:
		return anthropic.NewClient(cfg)
	case llm.ProtocolGoogleAI:
		return google.NewClient(ctx, cfg)
	default:
		return nil, &llm.InvalidRequestError{Message: fmt.Sprintf("unsupported protocol %q", cfg.Protocol)}
	}
}
