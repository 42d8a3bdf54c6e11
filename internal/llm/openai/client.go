// Package openai implements llm.Client for the OpenAICompat and AzureOpenAI
// protocols on top of github.com/sashabaranov/go-openai. The two protocols
// share this implementation because the underlying SDK's openai.ClientConfig
// already distinguishes Azure from vanilla OpenAI via APIType/APIVersion.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jokas3322/coro-code/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

const defaultHTTPTimeout = 300 * time.Second

// maxRetries bounds the client-local retry loop for failed calls.
// The core does not mandate retries (spec §4.D); this is a caller choice,
// grounded on the teacher's own CallLLM retry loop.
const maxRetries = 1

// Client implements llm.Client for OpenAICompat and AzureOpenAI.
type Client struct {
	client *openailib.Client
	cfg    llm.ResolvedLlmConfig
}

// NewClient builds a Client from a resolved config. For AzureOpenAI,
// cfg.Params["api_version"] selects the Azure API version (defaults to
// "2024-06-01" if absent); cfg.Params["deployment"] overrides the deployment
// name used in the URL (defaults to cfg.Model).
func NewClient(cfg llm.ResolvedLlmConfig) (*Client, error) {
	if cfg.Protocol != llm.ProtocolOpenAICompat && cfg.Protocol != llm.ProtocolAzureOpenAI && cfg.Protocol != llm.ProtocolCustom {
		return nil, &llm.InvalidRequestError{Message: fmt.Sprintf("openai client does not support protocol %s", cfg.Protocol)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientConfig := openailib.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Protocol == llm.ProtocolAzureOpenAI {
		apiVersion := "2024-06-01"
		if v, ok := cfg.Params["api_version"].(string); ok && v != "" {
			apiVersion = v
		}
		deployment := cfg.Model
		if v, ok := cfg.Params["deployment"].(string); ok && v != "" {
			deployment = v
		}
		clientConfig = openailib.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		clientConfig.APIVersion = apiVersion
		clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	}

	timeout := defaultHTTPTimeout
	if v, ok := cfg.Params["http_timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}
	transport := http.DefaultTransport
	if len(cfg.Headers) > 0 {
		transport = &headerTransport{base: transport, headers: cfg.Headers}
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout, Transport: transport}

	return &Client{client: openailib.NewClientWithConfig(clientConfig), cfg: cfg}, nil
}

// headerTransport injects static headers (e.g. a gateway's auth header, a
// tenant id) into every outgoing request, since openailib.ClientConfig has
// no headers field of its own.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func (c *Client) ModelName() string      { return c.cfg.Model }
func (c *Client) ProviderName() string   { return "openai:" + c.cfg.Protocol.String() }
func (c *Client) SupportsStreaming() bool { return true }

func toOpenAIMessages(messages []llm.Message) ([]openailib.ChatCompletionMessage, error) {
	out := make([]openailib.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleTool {
			var hasResult bool
			for _, b := range m.Blocks {
				if b.Kind == llm.BlockToolResult {
					hasResult = true
					out = append(out, openailib.ChatCompletionMessage{
						Role:       openailib.ChatMessageRoleTool,
						Content:    b.Content,
						ToolCallID: b.ToolUseID,
					})
				}
			}
			if !hasResult {
				return nil, &llm.InvalidRequestError{Message: "tool-role message contains no ToolResult block"}
			}
			continue
		}
		if len(m.Blocks) == 0 {
			out = append(out, openailib.ChatCompletionMessage{Role: m.Role, Content: m.Content})
			continue
		}
		msg := openailib.ChatCompletionMessage{Role: m.Role}
		for _, b := range m.Blocks {
			switch b.Kind {
			case llm.BlockText:
				msg.Content += b.Text
			case llm.BlockToolUse:
				msg.ToolCalls = append(msg.ToolCalls, openailib.ToolCall{
					ID:   b.ID,
					Type: openailib.ToolTypeFunction,
					Function: openailib.FunctionCall{
						Name:      b.Name,
						Arguments: string(b.Input),
					},
				})
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

func toOpenAITools(defs []llm.ToolDefinition) []openailib.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openailib.Tool, len(defs))
	for i, d := range defs {
		var params any
		_ = json.Unmarshal(d.Parameters, &params)
		tools[i] = openailib.Tool{
			Type: openailib.ToolTypeFunction,
			Function: &openailib.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		}
	}
	return tools
}

func fromFinishReason(r openailib.FinishReason) llm.FinishReason {
	switch r {
	case openailib.FinishReasonStop:
		return llm.FinishStop
	case openailib.FinishReasonLength:
		return llm.FinishLength
	case openailib.FinishReasonToolCalls, openailib.FinishReasonFunctionCall:
		return llm.FinishToolCalls
	case openailib.FinishReasonContentFilter:
		return llm.FinishContentFilter
	default:
		return llm.FinishOther
	}
}

func (c *Client) buildRequest(messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options, stream bool) (openailib.ChatCompletionRequest, error) {
	msgs, err := toOpenAIMessages(messages)
	if err != nil {
		return openailib.ChatCompletionRequest{}, err
	}
	req := openailib.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Tools:       toOpenAITools(tools),
		Temperature: float32(opts.Temperature),
		Stream:      stream,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.TopP > 0 {
		req.TopP = float32(opts.TopP)
	}
	if len(opts.Stop) > 0 {
		req.Stop = opts.Stop
	}
	switch opts.ToolChoice.Mode {
	case llm.ToolChoiceNone:
		req.ToolChoice = "none"
	case llm.ToolChoiceRequired:
		req.ToolChoice = openailib.ToolChoice{Type: openailib.ToolTypeFunction, Function: openailib.ToolFunction{Name: opts.ToolChoice.Name}}
	default:
		if len(tools) > 0 {
			req.ToolChoice = "auto"
		}
	}
	if cap := llm.DetectThinkingCapability(c.cfg.Model); cap.SupportsNativeThinking {
		req.ReasoningEffort = "medium"
	}
	return req, nil
}

func fromOpenAIMessage(m openailib.ChatCompletionMessage) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant}
	if m.Content != "" {
		msg.Blocks = append(msg.Blocks, llm.TextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		msg.Blocks = append(msg.Blocks, llm.ToolUseBlock(tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}
	if len(msg.Blocks) == 0 {
		msg.Content = m.Content
	}
	return msg
}

// ChatCompletion issues a non-streaming request, retrying any failed call
// up to maxRetries times with linear backoff.
func (c *Client) ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options) (llm.Response, error) {
	req, err := c.buildRequest(messages, tools, opts, false)
	if err != nil {
		return llm.Response{}, err
	}

	var resp openailib.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, lastErr = c.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if attempt < maxRetries {
			wait := time.Duration(attempt+1) * time.Second
			log.Printf("[LLM] retry %d/%d after %v: %v", attempt+1, maxRetries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return llm.Response{}, ctx.Err()
			}
		}
	}
	if lastErr != nil {
		return llm.Response{}, classifyError(lastErr)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, &llm.APIError{Status: 0, Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	return llm.Response{
		Message:      fromOpenAIMessage(choice.Message),
		Usage:        &llm.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens, TotalTokens: resp.Usage.TotalTokens},
		Model:        resp.Model,
		FinishReason: fromFinishReason(choice.FinishReason),
	}, nil
}

// ChatCompletionStream issues a streaming request and feeds every delta
// through a llm.StreamReassembler, invoking onChunk per text delta for
// callers that want live output, and returning the fully reassembled
// Response once the stream ends.
func (c *Client) ChatCompletionStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options, onChunk func(llm.StreamChunk)) (llm.Response, error) {
	req, err := c.buildRequest(messages, tools, opts, true)
	if err != nil {
		return llm.Response{}, err
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	defer stream.Close()

	reasm := llm.NewStreamReassembler()
	var finish llm.FinishReason
	var usage llm.Usage
	var model string
	idByIndex := make(map[int]string)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if reasm.Text() != "" {
				log.Printf("[LLM] stream interrupted after %d chars: %v", len(reasm.Text()), err)
				break
			}
			return llm.Response{}, &llm.StreamProtocolError{Message: err.Error()}
		}
		model = chunk.Model
		if len(chunk.Choices) == 0 {
			continue
		}
		ch := chunk.Choices[0]
		sc := llm.StreamChunk{}
		for _, tc := range ch.Delta.ToolCalls {
			if tc.ID != "" {
				idByIndex[derefInt(tc.Index)] = tc.ID
			}
			sc.ToolCallID = idByIndex[derefInt(tc.Index)]
			if sc.ToolCallID == "" {
				sc.ToolCallID = fmt.Sprintf("call_%d", derefInt(tc.Index))
			}
			sc.ToolCallName = tc.Function.Name
			sc.ToolCallArgs = tc.Function.Arguments
			reasm.Feed(sc)
			sc = llm.StreamChunk{}
		}
		if ch.Delta.Content != "" {
			reasm.Feed(llm.StreamChunk{Delta: ch.Delta.Content})
			if onChunk != nil {
				onChunk(llm.StreamChunk{Delta: ch.Delta.Content})
			}
		}
		if ch.FinishReason != "" {
			finish = fromFinishReason(ch.FinishReason)
		}
		if chunk.Usage != nil {
			usage = llm.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens, TotalTokens: chunk.Usage.TotalTokens}
		}
	}

	blocks := reasm.Finish()
	msg := llm.Message{Role: llm.RoleAssistant, Blocks: blocks}
	return llm.Response{Message: msg, Usage: &usage, Model: model, FinishReason: finish}, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func classifyError(err error) error {
	var apiErr *openailib.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return &llm.AuthenticationError{Message: apiErr.Message}
		}
		return &llm.APIError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return &llm.TimeoutError{Message: err.Error()}
	}
	return &llm.APIError{Status: 0, Message: err.Error()}
}
