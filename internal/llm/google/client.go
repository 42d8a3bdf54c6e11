// Package google implements llm.Client for the GoogleAI protocol on top of
// google.golang.org/genai.
package google

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/jokas3322/coro-code/internal/llm"
)

// Client implements llm.Client against the Gemini GenerateContent API.
type Client struct {
	client *genai.Client
	cfg    llm.ResolvedLlmConfig
}

// NewClient builds a Client from a resolved config.
func NewClient(ctx context.Context, cfg llm.ResolvedLlmConfig) (*Client, error) {
	if cfg.Protocol != llm.ProtocolGoogleAI {
		return nil, &llm.InvalidRequestError{Message: fmt.Sprintf("google client does not support protocol %s", cfg.Protocol)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, &llm.APIError{Status: 0, Message: "creating genai client: " + err.Error()}
	}
	return &Client{client: gc, cfg: cfg}, nil
}

func (c *Client) ModelName() string       { return c.cfg.Model }
func (c *Client) ProviderName() string    { return "google-ai" }
func (c *Client) SupportsStreaming() bool { return true }

func toGenaiContents(messages []llm.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			if text := m.Text(); text != "" {
				system = &genai.Content{Parts: []*genai.Part{{Text: text}}}
			}
			continue
		}
		content := messageToContent(m)
		if content != nil {
			contents = append(contents, content)
		}
	}
	return contents, system
}

func messageToContent(m llm.Message) *genai.Content {
	var parts []*genai.Part
	if len(m.Blocks) == 0 {
		if m.Content == "" {
			return nil
		}
		parts = append(parts, &genai.Part{Text: m.Content})
	}
	for _, b := range m.Blocks {
		switch b.Kind {
		case llm.BlockText:
			if b.Text != "" {
				parts = append(parts, &genai.Part{Text: b.Text})
			}
		case llm.BlockToolUse:
			var args map[string]any
			_ = json.Unmarshal(b.Input, &args)
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: b.ID, Name: b.Name, Args: args}})
		case llm.BlockToolResult:
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       b.ToolUseID,
				Response: map[string]any{"result": b.Content, "error": b.IsError},
			}})
		}
	}
	if len(parts) == 0 {
		return nil
	}
	role := "user"
	if m.Role == llm.RoleAssistant {
		role = "model"
	}
	return &genai.Content{Parts: parts, Role: role}
}

func toGenaiTools(defs []llm.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		_ = json.Unmarshal(d.Parameters, &schema)
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  jsonSchemaToGenai(schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func jsonSchemaToGenai(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = jsonSchemaToGenai(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = jsonSchemaToGenai(items)
	}
	return s
}

func (c *Client) buildConfig(tools []llm.ToolDefinition, opts llm.Options, system *genai.Content) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(opts.TopP))
	}
	if opts.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(opts.TopK))
	}
	if len(opts.Stop) > 0 {
		cfg.StopSequences = opts.Stop
	}
	if genTools := toGenaiTools(tools); len(genTools) > 0 {
		cfg.Tools = genTools
		if opts.ToolChoice.Mode == llm.ToolChoiceNone {
			cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone}}
		} else if opts.ToolChoice.Mode == llm.ToolChoiceRequired {
			cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny}}
		}
	}
	return cfg
}

func mapFinishReason(r genai.FinishReason) llm.FinishReason {
	switch r {
	case genai.FinishReasonStop:
		return llm.FinishStop
	case genai.FinishReasonMaxTokens:
		return llm.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return llm.FinishContentFilter
	default:
		return llm.FinishOther
	}
}

func parseResponse(resp *genai.GenerateContentResponse) llm.Response {
	out := llm.Message{Role: llm.RoleAssistant}
	var finish llm.FinishReason
	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		finish = mapFinishReason(candidate.FinishReason)
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" && !part.Thought {
					out.Blocks = append(out.Blocks, llm.TextBlock(part.Text))
				}
				if part.FunctionCall != nil {
					id := part.FunctionCall.ID
					if id == "" {
						id = part.FunctionCall.Name
					}
					args, _ := json.Marshal(part.FunctionCall.Args)
					out.Blocks = append(out.Blocks, llm.ToolUseBlock(id, part.FunctionCall.Name, args))
				}
			}
		}
	}
	llmResp := llm.Response{Message: out, Model: resp.ModelVersion, FinishReason: finish}
	if resp.UsageMetadata != nil {
		llmResp.Usage = &llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return llmResp
}

// ChatCompletion issues a non-streaming GenerateContent request.
func (c *Client) ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options) (llm.Response, error) {
	contents, system := toGenaiContents(messages)
	cfg := c.buildConfig(tools, opts, system)
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, cfg)
	if err != nil {
		return llm.Response{}, &llm.APIError{Status: 0, Message: err.Error()}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return llm.Response{}, &llm.APIError{Status: 0, Message: "empty response from gemini"}
	}
	return parseResponse(resp), nil
}

// ChatCompletionStream issues GenerateContentStream and reassembles the
// result, buffering function-call args to valid JSON since genai already
// delivers them whole per chunk (unlike OpenAI/Anthropic's fragment deltas).
func (c *Client) ChatCompletionStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options, onChunk func(llm.StreamChunk)) (llm.Response, error) {
	contents, system := toGenaiContents(messages)
	cfg := c.buildConfig(tools, opts, system)

	reasm := llm.NewStreamReassembler()
	var finish llm.FinishReason
	var usage llm.Usage
	var model string
	var streamErr error

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.cfg.Model, contents, cfg) {
		if err != nil {
			streamErr = err
			break
		}
		model = resp.ModelVersion
		if resp.UsageMetadata != nil {
			usage = llm.Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
			}
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		candidate := resp.Candidates[0]
		finish = mapFinishReason(candidate.FinishReason)
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				reasm.Feed(llm.StreamChunk{Delta: part.Text})
				if onChunk != nil {
					onChunk(llm.StreamChunk{Delta: part.Text})
				}
			}
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					id = part.FunctionCall.Name
				}
				args, _ := json.Marshal(part.FunctionCall.Args)
				reasm.Feed(llm.StreamChunk{ToolCallID: id, ToolCallName: part.FunctionCall.Name, ToolCallArgs: string(args)})
			}
		}
	}
	if streamErr != nil && reasm.Text() == "" {
		return llm.Response{}, &llm.APIError{Status: 0, Message: streamErr.Error()}
	}

	blocks := reasm.Finish()
	return llm.Response{
		Message:      llm.Message{Role: llm.RoleAssistant, Blocks: blocks},
		Usage:        &usage,
		Model:        model,
		FinishReason: finish,
	}, nil
}
