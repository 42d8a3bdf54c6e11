package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jokas3322/coro-code/internal/tool"
)

// JSONEditTool is the json_edit_tool: view/set/add/remove over a restricted
// JSONPath (dotted traversal plus root replacement, no filters or wildcards).
type JSONEditTool struct {
	workspaceDir string
}

func NewJSONEditTool(workspaceDir string) *JSONEditTool {
	return &JSONEditTool{workspaceDir: workspaceDir}
}

func (t *JSONEditTool) Name() string { return "json_edit_tool" }
func (t *JSONEditTool) Description() string {
	return "View and edit JSON files using a restricted JSONPath: dotted field " +
		"traversal and array indices (e.g. $.a.b[0].c), plus the bare root $. " +
		"Operations: view, set, add, remove."
}

func (t *JSONEditTool) InputSchema() json.RawMessage {
	return tool.ReflectSchema[jsonEditArgs]()
}

func (t *JSONEditTool) RequiresConfirmation() bool   { return false }
func (t *JSONEditTool) Init(_ context.Context) error { return nil }
func (t *JSONEditTool) Close() error                 { return nil }

type jsonEditArgs struct {
	Operation   string `json:"operation" jsonschema:"required,enum=view,enum=set,enum=add,enum=remove,description=one of view/set/add/remove"`
	FilePath    string `json:"file_path" jsonschema:"required,description=absolute path to the JSON file"`
	JSONPath    string `json:"json_path,omitempty" jsonschema:"description=restricted JSONPath starting with $ e.g. $.server.port"`
	Value       string `json:"value,omitempty" jsonschema:"description=JSON-encoded value required for set/add"`
	PrettyPrint *bool  `json:"pretty_print,omitempty" jsonschema:"description=pretty-print the file on write (default true)"`
}

func (t *JSONEditTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a jsonEditArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}

	if !filepath.IsAbs(a.FilePath) {
		return tool.Failed("", fmt.Sprintf("file_path %q must be an absolute path", a.FilePath)), nil
	}
	if t.workspaceDir != "" {
		resolved, err := safeResolvePath(a.FilePath, t.workspaceDir)
		if err != nil {
			return tool.Failed("", err.Error()), nil
		}
		a.FilePath = resolved
	}

	data, err := os.ReadFile(a.FilePath)
	if err != nil {
		return tool.Failed("", fmt.Sprintf("failed to read %s: %v", a.FilePath, err)), nil
	}

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return tool.Failed("", fmt.Sprintf("%s does not contain valid JSON: %v", a.FilePath, err)), nil
	}

	segments, err := parseJSONPath(a.JSONPath)
	if err != nil {
		return tool.Failed("", err.Error()), nil
	}

	switch a.Operation {
	case "view":
		return t.view(root, segments)
	case "set":
		return t.write(a, root, segments, false)
	case "add":
		return t.write(a, root, segments, true)
	case "remove":
		return t.remove(a, root, segments)
	default:
		return tool.Failed("", fmt.Sprintf("unknown operation %q, expected view/set/add/remove", a.Operation)), nil
	}
}

func (t *JSONEditTool) view(root any, segments []pathSegment) (tool.Result, error) {
	val, err := getPath(root, segments)
	if err != nil {
		return tool.Failed("", err.Error()), nil
	}
	out, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return tool.Failed("", fmt.Sprintf("failed to render value: %v", err)), nil
	}
	return tool.OK("", string(out)), nil
}

func (t *JSONEditTool) write(a jsonEditArgs, root any, segments []pathSegment, isAdd bool) (tool.Result, error) {
	if a.Value == "" {
		return tool.Failed("", fmt.Sprintf("%s requires a value", a.Operation)), nil
	}
	var newVal any
	if err := json.Unmarshal([]byte(a.Value), &newVal); err != nil {
		return tool.Failed("", fmt.Sprintf("value is not valid JSON: %v", err)), nil
	}

	if len(segments) == 0 {
		root = newVal
	} else {
		var err error
		root, err = setPath(root, segments, newVal, isAdd)
		if err != nil {
			return tool.Failed("", err.Error()), nil
		}
	}

	return t.save(a, root)
}

func (t *JSONEditTool) remove(a jsonEditArgs, root any, segments []pathSegment) (tool.Result, error) {
	if len(segments) == 0 {
		return tool.Failed("", "remove requires a non-root json_path"), nil
	}
	newRoot, err := removePath(root, segments)
	if err != nil {
		return tool.Failed("", err.Error()), nil
	}
	return t.save(a, newRoot)
}

func (t *JSONEditTool) save(a jsonEditArgs, root any) (tool.Result, error) {
	pretty := a.PrettyPrint == nil || *a.PrettyPrint

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(root); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to serialize result: %v", err)), nil
	}

	if err := os.WriteFile(a.FilePath, buf.Bytes(), 0644); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to write %s: %v", a.FilePath, err)), nil
	}
	return tool.OK("", fmt.Sprintf("%s updated", a.FilePath)), nil
}

// ── restricted JSONPath ──

// pathSegment is either a map key (key != "", isIndex == false) or an
// array index (isIndex == true).
type pathSegment struct {
	key     string
	index   int
	isIndex bool
}

// parseJSONPath parses "$", "$.a.b[0].c" into segments. Anything beyond
// dotted field access and bracketed integer indices is rejected.
func parseJSONPath(path string) ([]pathSegment, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "$" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("json_path %q must start with $", path)
	}
	rest := path[1:]

	var segments []pathSegment
	for len(rest) > 0 {
		switch {
		case rest[0] == '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end == -1 {
				end = len(rest)
			}
			field := rest[:end]
			if field == "" {
				return nil, fmt.Errorf("json_path %q has an empty field segment", path)
			}
			segments = append(segments, pathSegment{key: field})
			rest = rest[end:]
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				return nil, fmt.Errorf("json_path %q has an unterminated [", path)
			}
			idxStr := rest[1:end]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, fmt.Errorf("json_path %q has a non-integer index %q: only array indices are supported", path, idxStr)
			}
			segments = append(segments, pathSegment{index: idx, isIndex: true})
			rest = rest[end+1:]
		default:
			return nil, fmt.Errorf("json_path %q: unsupported syntax at %q", path, rest)
		}
	}
	return segments, nil
}

func getPath(root any, segments []pathSegment) (any, error) {
	cur := root
	for i, seg := range segments {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok {
				return nil, fmt.Errorf("expected an array at segment %d, got %T", i, cur)
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return nil, fmt.Errorf("index %d out of range (len %d)", seg.index, len(arr))
			}
			cur = arr[seg.index]
		} else {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected an object at segment %d, got %T", i, cur)
			}
			v, ok := m[seg.key]
			if !ok {
				return nil, fmt.Errorf("key %q not found", seg.key)
			}
			cur = v
		}
	}
	return cur, nil
}

// setPath returns a new root with newVal placed at segments. allowCreate
// permits creating a missing final map key (json_edit_tool's "add"); "set"
// requires the final key/index to already exist.
func setPath(root any, segments []pathSegment, newVal any, allowCreate bool) (any, error) {
	if len(segments) == 0 {
		return newVal, nil
	}
	parent, err := getPath(root, segments[:len(segments)-1])
	if err != nil {
		return nil, err
	}
	last := segments[len(segments)-1]

	if last.isIndex {
		arr, ok := parent.([]any)
		if !ok {
			return nil, fmt.Errorf("expected an array at the final segment, got %T", parent)
		}
		if last.index < 0 || last.index >= len(arr) {
			return nil, fmt.Errorf("index %d out of range (len %d)", last.index, len(arr))
		}
		arr[last.index] = newVal
	} else {
		m, ok := parent.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object at the final segment, got %T", parent)
		}
		if _, exists := m[last.key]; !exists && !allowCreate {
			return nil, fmt.Errorf("key %q does not exist, use add to create it", last.key)
		}
		m[last.key] = newVal
	}
	return root, nil
}

func removePath(root any, segments []pathSegment) (any, error) {
	parent, err := getPath(root, segments[:len(segments)-1])
	if err != nil {
		return nil, err
	}
	last := segments[len(segments)-1]

	if last.isIndex {
		arr, ok := parent.([]any)
		if !ok {
			return nil, fmt.Errorf("expected an array at the final segment, got %T", parent)
		}
		if last.index < 0 || last.index >= len(arr) {
			return nil, fmt.Errorf("index %d out of range (len %d)", last.index, len(arr))
		}
		arr = append(arr[:last.index], arr[last.index+1:]...)
		return setParentArray(root, segments[:len(segments)-1], arr)
	}

	m, ok := parent.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object at the final segment, got %T", parent)
	}
	if _, exists := m[last.key]; !exists {
		return nil, fmt.Errorf("key %q not found", last.key)
	}
	delete(m, last.key)
	return root, nil
}

// setParentArray replaces the array value at segments with newArr. This is
// needed only for removal from an array, since a shortened slice may get a
// new backing header that the parent's stored reference won't see.
func setParentArray(root any, segments []pathSegment, newArr []any) (any, error) {
	if len(segments) == 0 {
		return newArr, nil
	}
	return setPath(root, segments, newArr, false)
}
