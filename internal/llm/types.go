// Package llm defines the protocol-agnostic message model, configuration,
// and client contract that every LLM provider implementation (openai,
// anthropic, google) satisfies.
package llm

import (
	"context"
	"encoding/json"
)

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// BlockKind discriminates a ContentBlock.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockToolUse
	BlockToolResult
)

// ContentBlock is a tagged union: Text, ToolUse, or ToolResult. Only the
// fields relevant to Kind are populated.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ID    string          `json:"id,omitempty"`    // tool_use id, referenced later by a ToolResult
	Name  string          `json:"name,omitempty"`  // tool name
	Input json.RawMessage `json:"input,omitempty"` // tool arguments as JSON

	// BlockToolResult
	ToolUseID string `json:"tool_use_id,omitempty"` // must equal an earlier ToolUse.ID in the same Conversation
	IsError   bool   `json:"is_error,omitempty"`
	Content   string `json:"content,omitempty"`
}

// TextBlock constructs a Text content block.
func TextBlock(text string) ContentBlock { return ContentBlock{Kind: BlockText, Text: text} }

// ToolUseBlock constructs a ToolUse content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock constructs a ToolResult content block.
func ToolResultBlock(toolUseID string, isError bool, content string) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolUseID: toolUseID, IsError: isError, Content: content}
}

// Message is a single turn in a Conversation. Content is either plain text
// (simple single-block messages) or an ordered list of ContentBlocks.
// Exactly one of Content/Blocks should be treated as authoritative: Blocks
// when non-empty, Content otherwise (simple text messages from earlier
// provider SDKs still round-trip via Content).
type Message struct {
	Role     string         `json:"role"`
	Content  string         `json:"content,omitempty"`
	Blocks   []ContentBlock `json:"blocks,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the message's text content, concatenating any Text blocks if
// Blocks is populated, else returning Content.
func (m Message) Text() string {
	if len(m.Blocks) == 0 {
		return m.Content
	}
	var out string
	for _, b := range m.Blocks {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns every ToolUse block in the message, in order.
func (m Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// HasToolUse reports whether the message carries any ToolUse block.
func (m Message) HasToolUse() bool { return len(m.ToolUses()) > 0 }

// Protocol identifies the wire format a provider speaks.
type Protocol int

const (
	ProtocolOpenAICompat Protocol = iota
	ProtocolAnthropic
	ProtocolGoogleAI
	ProtocolAzureOpenAI
	ProtocolCustom
)

func (p Protocol) String() string {
	switch p {
	case ProtocolOpenAICompat:
		return "openai-compat"
	case ProtocolAnthropic:
		return "anthropic"
	case ProtocolGoogleAI:
		return "google-ai"
	case ProtocolAzureOpenAI:
		return "azure-openai"
	case ProtocolCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// defaultBaseURLs holds the per-protocol default base URL. Custom has none.
var defaultBaseURLs = map[Protocol]string{
	ProtocolOpenAICompat: "https://api.openai.com/v1",
	ProtocolAnthropic:    "https://api.anthropic.com",
	ProtocolGoogleAI:     "https://generativelanguage.googleapis.com",
	ProtocolAzureOpenAI:  "", // Azure requires an explicit resource base_url
}

// DefaultBaseURL returns the protocol's default base URL, or "" if the
// protocol has none (AzureOpenAI, Custom).
func DefaultBaseURL(p Protocol) string { return defaultBaseURLs[p] }

// ResolvedLlmConfig is the sole LLM configuration contract the core
// consumes; it is the caller's responsibility to build one (from env vars,
// a config file, etc. — out of scope here).
type ResolvedLlmConfig struct {
	Protocol   Protocol
	CustomName string // populated only when Protocol == ProtocolCustom
	BaseURL    string
	APIKey     string
	Model      string
	Params     map[string]any
	Headers    map[string]string
}

// Validate checks the invariants spec.md §3/§6 impose on ResolvedLlmConfig.
func (c ResolvedLlmConfig) Validate() error {
	if c.APIKey == "" {
		return &InvalidRequestError{Message: "api_key must be non-empty"}
	}
	if c.Model == "" {
		return &InvalidRequestError{Message: "model must be non-empty"}
	}
	if c.BaseURL == "" && c.Protocol != ProtocolAzureOpenAI && c.Protocol != ProtocolCustom {
		// OpenAICompat/Anthropic/GoogleAI always have a default; an empty
		// BaseURL here means DefaultBaseURL was never applied by the caller.
		return &InvalidRequestError{Message: "base_url must be resolved before use"}
	}
	if c.BaseURL == "" && (c.Protocol == ProtocolAzureOpenAI || c.Protocol == ProtocolCustom) {
		return &InvalidRequestError{Message: "base_url is required for AzureOpenAI/Custom protocols"}
	}
	return nil
}

// ToolDefinition describes one callable tool in the shape the LLM client
// passes through to the provider's function/tool-calling API.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolChoiceMode selects how the provider should pick among ToolDefinitions.
type ToolChoiceMode int

const (
	ToolChoiceAuto ToolChoiceMode = iota
	ToolChoiceNone
	ToolChoiceRequired
)

// ToolChoice is Auto, None, or Required(name).
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // populated only when Mode == ToolChoiceRequired
}

// Options configures a single chat_completion[_stream] call.
type Options struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
	Stop        []string
	Stream      bool
	ToolChoice  ToolChoice
}

// DefaultOptions returns the spec-mandated defaults: temperature 0.7,
// tool_choice Auto, stream false.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, ToolChoice: ToolChoice{Mode: ToolChoiceAuto}}
}

// FinishReason is why the provider stopped generating.
type FinishReason int

const (
	FinishStop FinishReason = iota
	FinishLength
	FinishToolCalls
	FinishContentFilter
	FinishOther
)

// Usage reports provider-declared token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is the result of a non-streaming chat_completion call.
type Response struct {
	Message      Message
	Usage        *Usage
	Model        string
	FinishReason FinishReason
	OtherReason  string // populated only when FinishReason == FinishOther
	Metadata     map[string]any
}

// StreamChunk is one element of a chat_completion_stream. Only the relevant
// fields are populated per chunk.
type StreamChunk struct {
	Delta        string
	ToolCallID   string // set when this chunk carries a tool-call fragment
	ToolCallName string
	ToolCallArgs string // a fragment of the JSON arguments string
	FinishReason *FinishReason
	Usage        *Usage
}

// Client is the protocol-agnostic surface every provider implements.
type Client interface {
	ChatCompletion(ctx context.Context, messages []Message, tools []ToolDefinition, opts Options) (Response, error)
	ChatCompletionStream(ctx context.Context, messages []Message, tools []ToolDefinition, opts Options, onChunk func(StreamChunk)) (Response, error)
	ModelName() string
	ProviderName() string
	SupportsStreaming() bool
}
