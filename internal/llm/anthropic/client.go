// Package anthropic implements llm.Client for the Anthropic protocol on top
// of github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jokas3322/coro-code/internal/llm"
)

const defaultMaxTokens = 4096

// Client implements llm.Client against the Anthropic Messages API.
type Client struct {
	msg *sdk.MessageService
	cfg llm.ResolvedLlmConfig
}

// NewClient builds a Client from a resolved config.
func NewClient(cfg llm.ResolvedLlmConfig) (*Client, error) {
	if cfg.Protocol != llm.ProtocolAnthropic {
		return nil, &llm.InvalidRequestError{Message: fmt.Sprintf("anthropic client does not support protocol %s", cfg.Protocol)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	ac := sdk.NewClient(opts...)
	return &Client{msg: &ac.Messages, cfg: cfg}, nil
}

func (c *Client) ModelName() string       { return c.cfg.Model }
func (c *Client) ProviderName() string    { return "anthropic" }
func (c *Client) SupportsStreaming() bool { return true }

// extractSystem pulls RoleSystem messages out of the conversation; Anthropic
// carries system text as a top-level request field, not a message.
func extractSystem(messages []llm.Message) ([]sdk.TextBlockParam, []llm.Message) {
	var system []sdk.TextBlockParam
	var rest []llm.Message
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			if text := m.Text(); text != "" {
				system = append(system, sdk.TextBlockParam{Text: text})
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

func toAnthropicMessages(messages []llm.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks, err := toAnthropicBlocks(m)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case llm.RoleUser, llm.RoleTool:
			out = append(out, sdk.NewUserMessage(blocks...))
		case llm.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, &llm.InvalidRequestError{Message: fmt.Sprintf("unsupported role %q for anthropic", m.Role)}
		}
	}
	return out, nil
}

func toAnthropicBlocks(m llm.Message) ([]sdk.ContentBlockParamUnion, error) {
	if len(m.Blocks) == 0 {
		if m.Content == "" {
			return nil, nil
		}
		return []sdk.ContentBlockParamUnion{sdk.NewTextBlock(m.Content)}, nil
	}
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Kind {
		case llm.BlockText:
			if b.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(b.Text))
			}
		case llm.BlockToolUse:
			var input any
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &input); err != nil {
					return nil, &llm.InvalidRequestError{Message: "tool_use input is not valid JSON: " + err.Error()}
				}
			}
			blocks = append(blocks, sdk.NewToolUseBlock(b.ID, input, b.Name))
		case llm.BlockToolResult:
			blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
		}
	}
	return blocks, nil
}

func toAnthropicTools(defs []llm.ToolDefinition) []sdk.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		_ = json.Unmarshal(d.Parameters, &schema)
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, d.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(d.Description)
		}
		out = append(out, u)
	}
	return out
}

func toAnthropicToolChoice(tc llm.ToolChoice) sdk.ToolChoiceUnionParam {
	switch tc.Mode {
	case llm.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}
	case llm.ToolChoiceRequired:
		if tc.Name != "" {
			return sdk.ToolChoiceParamOfTool(tc.Name)
		}
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	default:
		return sdk.ToolChoiceUnionParam{}
	}
}

func (c *Client) buildParams(messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options) (sdk.MessageNewParams, error) {
	system, rest := extractSystem(messages)
	msgs, err := toAnthropicMessages(rest)
	if err != nil {
		return sdk.MessageNewParams{}, err
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.cfg.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if anthTools := toAnthropicTools(tools); len(anthTools) > 0 {
		params.Tools = anthTools
		if opts.ToolChoice.Mode != llm.ToolChoiceAuto {
			params.ToolChoice = toAnthropicToolChoice(opts.ToolChoice)
		}
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}
	return params, nil
}

func fromStopReason(r sdk.StopReason) llm.FinishReason {
	switch r {
	case sdk.StopReasonEndTurn:
		return llm.FinishStop
	case sdk.StopReasonMaxTokens:
		return llm.FinishLength
	case sdk.StopReasonToolUse:
		return llm.FinishToolCalls
	default:
		return llm.FinishOther
	}
}

// ChatCompletion issues a non-streaming Messages.New request.
func (c *Client) ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options) (llm.Response, error) {
	params, err := c.buildParams(messages, tools, opts)
	if err != nil {
		return llm.Response{}, err
	}
	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}

	out := llm.Message{Role: llm.RoleAssistant}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				out.Blocks = append(out.Blocks, llm.TextBlock(block.Text))
			}
		case "tool_use":
			out.Blocks = append(out.Blocks, llm.ToolUseBlock(block.ID, block.Name, json.RawMessage(block.Input)))
		}
	}

	return llm.Response{
		Message: out,
		Usage: &llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Model:        string(msg.Model),
		FinishReason: fromStopReason(msg.StopReason),
	}, nil
}

type toolBuffer struct {
	id, name string
}

// ChatCompletionStream issues Messages.NewStreaming and feeds every delta
// through a llm.StreamReassembler, grounded on the SSE event shapes
// (content_block_start/delta/stop, message_delta, message_stop).
func (c *Client) ChatCompletionStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, opts llm.Options, onChunk func(llm.StreamChunk)) (llm.Response, error) {
	params, err := c.buildParams(messages, tools, opts)
	if err != nil {
		return llm.Response{}, err
	}
	stream := c.msg.NewStreaming(ctx, params)

	reasm := llm.NewStreamReassembler()
	toolBlocks := make(map[int64]*toolBuffer)
	var finish llm.FinishReason
	var usage llm.Usage
	model := c.cfg.Model

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockStartEvent:
			if tu, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolBlocks[ev.Index] = &toolBuffer{id: tu.ID, name: tu.Name}
				reasm.Feed(llm.StreamChunk{ToolCallID: tu.ID, ToolCallName: tu.Name})
			}
		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text != "" {
					reasm.Feed(llm.StreamChunk{Delta: delta.Text})
					if onChunk != nil {
						onChunk(llm.StreamChunk{Delta: delta.Text})
					}
				}
			case sdk.InputJSONDelta:
				if tb := toolBlocks[ev.Index]; tb != nil && delta.PartialJSON != "" {
					reasm.Feed(llm.StreamChunk{ToolCallID: tb.id, ToolCallArgs: delta.PartialJSON})
				}
			}
		case sdk.MessageDeltaEvent:
			finish = fromStopReason(ev.Delta.StopReason)
			usage = llm.Usage{InputTokens: int(ev.Usage.InputTokens), OutputTokens: int(ev.Usage.OutputTokens), TotalTokens: int(ev.Usage.InputTokens + ev.Usage.OutputTokens)}
		case sdk.MessageStopEvent:
		}
	}
	if err := stream.Err(); err != nil {
		if reasm.Text() != "" {
			log.Printf("[LLM] anthropic stream interrupted after %d chars: %v", len(reasm.Text()), err)
		} else if errors.Is(ctx.Err(), context.Canceled) {
			return llm.Response{}, ctx.Err()
		} else {
			return llm.Response{}, classifyError(err)
		}
	}

	blocks := reasm.Finish()
	return llm.Response{
		Message:      llm.Message{Role: llm.RoleAssistant, Blocks: blocks},
		Usage:        &usage,
		Model:        model,
		FinishReason: finish,
	}, nil
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
		return &llm.AuthenticationError{Message: apiErr.Error()}
	}
	return &llm.APIError{Status: 0, Message: err.Error()}
}
