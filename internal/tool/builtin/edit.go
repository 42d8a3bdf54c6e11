package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jokas3322/coro-code/internal/tool"
)

const (
	editMaxFileSize  = 5 << 20 // 5MB
	editSnippetLines = 4       // lines of context on each side of an edit
)

// EditTool is the str_replace_based_edit_tool: a single four-subcommand
// tool (view/create/str_replace/insert) over absolute paths, mirroring
// the shape Anthropic's own text-editor tool definitions use.
type EditTool struct {
	workspaceDir string
}

func NewEditTool(workspaceDir string) *EditTool {
	return &EditTool{workspaceDir: workspaceDir}
}

func (t *EditTool) Name() string { return "str_replace_based_edit_tool" }
func (t *EditTool) Description() string {
	return "Custom editing tool for viewing, creating and editing files\n" +
		"* command `view` displays a file with line numbers, or a directory's entries up to two levels deep\n" +
		"* command `create` makes a new file; fails if the path already exists\n" +
		"* command `str_replace` replaces old_str with new_str; old_str must match exactly once in the file\n" +
		"* command `insert` inserts new_str after insert_line\n" +
		"* all paths must be absolute"
}

func (t *EditTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "command", Type: "string", Description: "one of: view, create, str_replace, insert", Required: true, Enum: []string{"view", "create", "str_replace", "insert"}},
		tool.SchemaParam{Name: "path", Type: "string", Description: "absolute path to the file or directory", Required: true},
		tool.SchemaParam{Name: "file_text", Type: "string", Description: "content for create"},
		tool.SchemaParam{Name: "old_str", Type: "string", Description: "text to replace, must be unique in the file, for str_replace"},
		tool.SchemaParam{Name: "new_str", Type: "string", Description: "replacement text, for str_replace and insert"},
		tool.SchemaParam{Name: "insert_line", Type: "integer", Description: "line number after which to insert, for insert"},
		tool.SchemaParam{Name: "view_range", Type: "array", Description: "[start, end] 1-indexed inclusive line range for view; end=-1 means end of file"},
	)
}

func (t *EditTool) RequiresConfirmation() bool   { return false }
func (t *EditTool) Init(_ context.Context) error { return nil }
func (t *EditTool) Close() error                 { return nil }

type editArgs struct {
	Command    string `json:"command"`
	Path       string `json:"path"`
	FileText   string `json:"file_text"`
	OldStr     string `json:"old_str"`
	NewStr     string `json:"new_str"`
	InsertLine *int   `json:"insert_line"`
	ViewRange  []int  `json:"view_range"`
}

func (t *EditTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a editArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}

	if !filepath.IsAbs(a.Path) {
		return tool.Failed("", fmt.Sprintf("path %q must be an absolute path", a.Path)), nil
	}

	if t.workspaceDir != "" {
		resolved, err := safeResolvePath(a.Path, t.workspaceDir)
		if err != nil {
			return tool.Failed("", err.Error()), nil
		}
		a.Path = resolved
		if a.Command != "view" {
			if msg := checkProtectedFile(a.Path, t.workspaceDir); msg != "" {
				return tool.Failed("", msg), nil
			}
		}
	}

	switch a.Command {
	case "view":
		return t.view(ctx, a)
	case "create":
		return t.create(a)
	case "str_replace":
		return t.strReplace(a)
	case "insert":
		return t.insert(a)
	default:
		return tool.Failed("", fmt.Sprintf("unknown command %q, expected view/create/str_replace/insert", a.Command)), nil
	}
}

func (t *EditTool) view(ctx context.Context, a editArgs) (tool.Result, error) {
	info, err := os.Stat(a.Path)
	if err != nil {
		return tool.Failed("", fmt.Sprintf("cannot access %s: %v", a.Path, err)), nil
	}

	if info.IsDir() {
		out, err := exec.CommandContext(ctx, "find", a.Path, "-maxdepth", "2", "-not", "-path", "*/.*").CombinedOutput()
		if err != nil {
			return tool.Failed("", fmt.Sprintf("failed to list directory %s: %v\n%s", a.Path, err, strings.TrimSpace(string(out)))), nil
		}
		return tool.OK("", fmt.Sprintf("directory contents of %s, up to 2 levels deep, hidden entries excluded:\n%s", a.Path, string(out))), nil
	}

	if info.Size() > editMaxFileSize {
		return tool.Failed("", fmt.Sprintf("file %s is too large (%d bytes, limit %d)", a.Path, info.Size(), editMaxFileSize)), nil
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return tool.Failed("", fmt.Sprintf("failed to read %s: %v", a.Path, err)), nil
	}

	lines := strings.Split(string(data), "\n")
	start, end := 1, len(lines)
	if len(a.ViewRange) == 2 {
		start, end = a.ViewRange[0], a.ViewRange[1]
		if end == -1 {
			end = len(lines)
		}
		if start < 1 || start > len(lines) || end < start || end > len(lines) {
			return tool.Failed("", fmt.Sprintf("invalid view_range %v for a file with %d lines", a.ViewRange, len(lines))), nil
		}
	}

	return tool.OK("", renderSnippet(lines, start, end)), nil
}

func (t *EditTool) create(a editArgs) (tool.Result, error) {
	if _, err := os.Stat(a.Path); err == nil {
		return tool.Failed("", fmt.Sprintf("cannot create %s: file already exists", a.Path)), nil
	}

	if err := os.MkdirAll(filepath.Dir(a.Path), 0755); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to create parent directories for %s: %v", a.Path, err)), nil
	}
	if err := os.WriteFile(a.Path, []byte(a.FileText), 0644); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to create %s: %v", a.Path, err)), nil
	}

	return tool.OK("", fmt.Sprintf("file created successfully at: %s", a.Path)), nil
}

func (t *EditTool) strReplace(a editArgs) (tool.Result, error) {
	if a.OldStr == "" {
		return tool.Failed("", "old_str must not be empty"), nil
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return tool.Failed("", fmt.Sprintf("failed to read %s: %v", a.Path, err)), nil
	}

	content := expandTabs(string(data))
	oldStr := expandTabs(a.OldStr)
	newStr := expandTabs(a.NewStr)

	count := strings.Count(content, oldStr)
	switch count {
	case 0:
		return tool.Failed("", fmt.Sprintf("no replacement made: old_str %q did not appear verbatim in %s", a.OldStr, a.Path)), nil
	case 1:
		// fall through
	default:
		var lineNums []string
		for i, line := range strings.Split(content, "\n") {
			if strings.Contains(line, oldStr) {
				lineNums = append(lineNums, fmt.Sprintf("%d", i+1))
			}
		}
		return tool.Failed("", fmt.Sprintf(
			"no replacement made: old_str appears %d times in %s, on lines %s. Add more surrounding context to make the match unique.",
			count, a.Path, strings.Join(lineNums, ", "))), nil
	}

	newContent := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(a.Path, []byte(newContent), 0644); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to write %s: %v", a.Path, err)), nil
	}

	replaceLine := strings.Count(content[:strings.Index(content, oldStr)], "\n")
	lines := strings.Split(newContent, "\n")
	start := replaceLine - editSnippetLines
	if start < 0 {
		start = 0
	}
	end := replaceLine + strings.Count(newStr, "\n") + editSnippetLines
	if end >= len(lines) {
		end = len(lines) - 1
	}

	snippet := renderSnippet(lines, start+1, end+1)
	return tool.OK("", fmt.Sprintf("the file %s has been edited. here is the edited snippet:\n%s\nreview the changes and make sure they are as expected", a.Path, snippet)), nil
}

func (t *EditTool) insert(a editArgs) (tool.Result, error) {
	if a.InsertLine == nil {
		return tool.Failed("", "insert_line is required"), nil
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return tool.Failed("", fmt.Sprintf("failed to read %s: %v", a.Path, err)), nil
	}

	lines := strings.Split(string(data), "\n")
	nlines := len(lines)
	insertAt := *a.InsertLine
	if insertAt < 0 || insertAt > nlines {
		return tool.Failed("", fmt.Sprintf("insert_line %d must be within [0, %d]", insertAt, nlines)), nil
	}

	newLines := strings.Split(a.NewStr, "\n")
	var result []string
	result = append(result, lines[:insertAt]...)
	result = append(result, newLines...)
	result = append(result, lines[insertAt:]...)

	if err := os.WriteFile(a.Path, []byte(strings.Join(result, "\n")), 0644); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to write %s: %v", a.Path, err)), nil
	}

	start := insertAt - editSnippetLines
	if start < 0 {
		start = 0
	}
	end := insertAt + len(newLines) + editSnippetLines
	if end >= len(result) {
		end = len(result) - 1
	}
	snippet := renderSnippet(result, start+1, end+1)

	return tool.OK("", fmt.Sprintf("the file %s has been edited. here is the edited snippet:\n%s\nreview the changes and make sure they are as expected", a.Path, snippet)), nil
}

// renderSnippet returns lines[start-1:end] (1-indexed, inclusive) with line
// numbers prepended. Tabs are printed as they appear in lines.
func renderSnippet(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	var sb strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&sb, "%6d\t%s\n", i, lines[i-1])
	}
	return sb.String()
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "        ")
}

// safeResolvePath resolves path and validates it stays within workspaceDir,
// guarding against path traversal (../../etc/passwd), prefix collisions
// (workspace "/project" vs sibling "/project-evil"), and symlink escapes
// where a link inside the workspace points outside it.
func safeResolvePath(path, workspaceDir string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else if workspaceDir != "" {
		resolved = filepath.Clean(filepath.Join(workspaceDir, path))
	} else {
		resolved = filepath.Clean(path)
	}

	if workspaceDir == "" {
		return resolved, nil
	}

	absWorkspace, err := filepath.Abs(workspaceDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve workspace directory: %w", err)
	}
	realWorkspace, err := filepath.EvalSymlinks(absWorkspace)
	if err != nil {
		realWorkspace = absWorkspace
	}

	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("cannot resolve target path: %w", err)
	}
	realResolved, _ := resolveExisting(absResolved)

	if runtime.GOOS == "windows" {
		realWorkspace = strings.ToLower(realWorkspace)
		realResolved = strings.ToLower(realResolved)
	}

	if realResolved != realWorkspace &&
		!strings.HasPrefix(realResolved, realWorkspace+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q falls outside the workspace %q", path, workspaceDir)
	}

	return resolved, nil
}

// resolveExisting resolves symlinks for path, or for its parent directory
// if path does not exist yet (e.g. a file about to be created).
func resolveExisting(path string) (string, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real, nil
	}
	if real, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		return filepath.Join(real, filepath.Base(path)), nil
	}
	return path, nil
}

// protectedFiles maps workspace-root-relative filenames to the tool that
// should manage them instead of generic file edits.
var protectedFiles = map[string]string{
	"mcp.json": "mcp_tool",
}

// checkProtectedFile returns a non-empty error message if resolvedPath
// points at a protected file that must not be modified directly.
func checkProtectedFile(resolvedPath, workspaceDir string) string {
	if workspaceDir == "" {
		return ""
	}
	base := filepath.Base(resolvedPath)
	dir := filepath.Dir(resolvedPath)
	absWorkspace, _ := filepath.Abs(workspaceDir)

	if runtime.GOOS == "windows" {
		dir = strings.ToLower(dir)
		absWorkspace = strings.ToLower(absWorkspace)
		base = strings.ToLower(base)
	}

	if dir != absWorkspace {
		return ""
	}
	if alt, ok := protectedFiles[base]; ok {
		return fmt.Sprintf("refusing to modify %s directly, use the %s tool instead", base, alt)
	}
	return ""
}
