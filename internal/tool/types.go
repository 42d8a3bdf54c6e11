package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Tool is the unified interface every built-in tool and MCP adapter
// implements. The scheduler never calls a tool directly — it always goes
// through a Registry and an Executor.
type Tool interface {
	// Name returns the tool identifier (the LLM uses this name to invoke it).
	Name() string

	// Description returns a natural-language description for prompt injection.
	Description() string

	// InputSchema returns a JSON Schema for the tool's parameters, compatible
	// with both MCP and OpenAI-style function calling.
	InputSchema() json.RawMessage

	// RequiresConfirmation reports whether the caller should gate this tool
	// behind an interactive confirmation before executing it.
	RequiresConfirmation() bool

	// Execute runs the tool against JSON-encoded arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)

	// Init initializes tool resources (e.g. MCP client connections, a
	// persistent shell session). Tools with no setup may return nil.
	Init(ctx context.Context) error

	// Close releases tool resources.
	Close() error
}

// Call is one tool invocation requested by the model, matching a ToolUse
// block's id/name/input 1:1.
type Call struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// Result is the outcome of executing a Call. Every Result.ID must reference
// the Call.ID it answers — the scheduler turns this straight into a
// llm.ToolResultBlock(tool_use_id=ID, is_error=!Success, content=Content).
type Result struct {
	ID      string         `json:"id"`
	Success bool           `json:"success"`
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK builds a successful Result.
func OK(id, content string) Result { return Result{ID: id, Success: true, Content: content} }

// Failed builds a failed Result. Tool-local errors are recovered into a
// failed Result rather than propagated as a Go error — only setup/transport
// failures that prevent returning any result at all use the error return.
func Failed(id, content string) Result { return Result{ID: id, Success: false, Content: content} }

// SchemaParam describes one parameter for the BuildSchema helper.
type SchemaParam struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"` // "string", "integer", "boolean", "number", "array", "object"
	Description string          `json:"description"`
	Required    bool            `json:"-"`
	Enum        []string        `json:"enum,omitempty"`
	Items       json.RawMessage `json:"items,omitempty"`
}

// BuildSchema generates a JSON Schema object from a list of SchemaParams, so
// native tools don't hand-write schema strings.
func BuildSchema(params ...SchemaParam) json.RawMessage {
	properties := make(map[string]any)
	var required []string

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if len(p.Items) > 0 {
			var items any
			_ = json.Unmarshal(p.Items, &items)
			prop["items"] = items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, _ := json.Marshal(schema)
	return data
}

// schemaReflector configures invopop/jsonschema for LLM-tool consumption:
// required fields come from jsonschema struct tags (not Go's zero-value
// pointer convention), definitions are inlined rather than $ref'd, and the
// $schema/$id bookkeeping fields are dropped since no tool consumer reads
// them.
var schemaReflector = &jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	DoNotReference:             true,
}

// ReflectSchema generates an InputSchema from a Go struct's json/jsonschema
// tags, for tools whose parameters are naturally a Go type rather than a
// hand-assembled SchemaParam list.
//
// Example:
//
//	type args struct {
//	    Path string `json:"path" jsonschema:"required,description=target file path"`
//	}
//	func (t *fooTool) InputSchema() json.RawMessage { return tool.ReflectSchema[args]() }
func ReflectSchema[T any]() json.RawMessage {
	schema := schemaReflector.Reflect(new(T))
	data, err := json.Marshal(schema)
	if err != nil {
		return BuildSchema()
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return data
	}
	delete(m, "$schema")
	delete(m, "$id")
	out, err := json.Marshal(m)
	if err != nil {
		return data
	}
	return out
}
