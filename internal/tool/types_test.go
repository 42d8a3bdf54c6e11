package tool

import (
	"encoding/json"
	"testing"
)

func TestBuildSchema(t *testing.T) {
	schema := BuildSchema(
		SchemaParam{Name: "command", Type: "string", Description: "Shell command", Required: true},
		SchemaParam{Name: "timeout", Type: "integer", Description: "Timeout in seconds", Required: false},
	)

	// Should be valid JSON
	var parsed map[string]interface{}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		t.Fatalf("BuildSchema output is not valid JSON: %v", err)
	}

	// Should have type: object
	if parsed["type"] != "object" {
		t.Errorf("type = %v, want 'object'", parsed["type"])
	}

	// Should have properties
	props, ok := parsed["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("missing 'properties' field")
	}

	// Check command property
	cmd, ok := props["command"].(map[string]interface{})
	if !ok {
		t.Fatal("missing 'command' property")
	}
	if cmd["type"] != "string" {
		t.Errorf("command.type = %v, want 'string'", cmd["type"])
	}
	if cmd["description"] != "Shell command" {
		t.Errorf("command.description = %v, want 'Shell command'", cmd["description"])
	}

	// Check timeout property
	timeout, ok := props["timeout"].(map[string]interface{})
	if !ok {
		t.Fatal("missing 'timeout' property")
	}
	if timeout["type"] != "integer" {
		t.Errorf("timeout.type = %v, want 'integer'", timeout["type"])
	}

	// Check required array
	required, ok := parsed["required"].([]interface{})
	if !ok {
		t.Fatal("missing 'required' field")
	}
	if len(required) != 1 || required[0] != "command" {
		t.Errorf("required = %v, want [command]", required)
	}
}

func TestBuildSchemaEmpty(t *testing.T) {
	schema := BuildSchema()

	var parsed map[string]interface{}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		t.Fatalf("empty schema is not valid JSON: %v", err)
	}

	if parsed["type"] != "object" {
		t.Errorf("type = %v, want 'object'", parsed["type"])
	}
}

type reflectTestArgs struct {
	Path  string `json:"path" jsonschema:"required,description=target file path"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=max results"`
}

func TestReflectSchema(t *testing.T) {
	schema := ReflectSchema[reflectTestArgs]()

	var parsed map[string]interface{}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		t.Fatalf("ReflectSchema output is not valid JSON: %v", err)
	}
	if parsed["type"] != "object" {
		t.Errorf("type = %v, want 'object'", parsed["type"])
	}
	if _, present := parsed["$schema"]; present {
		t.Error("expected $schema to be stripped")
	}
	props, ok := parsed["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("missing 'properties' field")
	}
	path, ok := props["path"].(map[string]interface{})
	if !ok {
		t.Fatal("missing 'path' property")
	}
	if path["description"] != "target file path" {
		t.Errorf("path.description = %v, want 'target file path'", path["description"])
	}
	required, ok := parsed["required"].([]interface{})
	if !ok || len(required) != 1 || required[0] != "path" {
		t.Errorf("required = %v, want [path]", parsed["required"])
	}
}

func TestRegistryBasicOps(t *testing.T) {
	reg := NewRegistry()

	// List should be empty
	if len(reg.List()) != 0 {
		t.Error("new registry should be empty")
	}

	// Get non-existent
	_, ok := reg.Get("nope")
	if ok {
		t.Error("Get on empty registry should return false")
	}
}

func TestGenerateToolsPromptEmpty(t *testing.T) {
	reg := NewRegistry()
	prompt := reg.GenerateToolsPrompt()
	if prompt != "（无可用工具）" {
		t.Errorf("empty registry prompt = %q, want '（无可用工具）'", prompt)
	}
}
