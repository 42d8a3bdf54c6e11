package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jokas3322/coro-code/internal/tool"
)

const globMaxResults = 200

// skipDirs are directory names always skipped during traversal, regardless
// of .gitignore.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, ".idea": true, ".vscode": true,
	"vendor": true, "__pycache__": true, ".cache": true,
}

// GlobTool is the glob tool: cross-platform pattern matching under a base
// path, honoring .gitignore by default, with a hard cap on result count.
type GlobTool struct {
	workspaceDir string
}

func NewGlobTool(workspaceDir string) *GlobTool {
	return &GlobTool{workspaceDir: workspaceDir}
}

func (t *GlobTool) Name() string { return "glob" }
func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern (e.g. '**/*.go', 'src/*.json') " +
		"under a base path, honoring .gitignore by default."
}

func (t *GlobTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "glob pattern, e.g. '*.go' or 'internal/**/*.go'", Required: true},
		tool.SchemaParam{Name: "path", Type: "string", Description: "base directory to search under, default is the workspace root"},
		tool.SchemaParam{Name: "respect_gitignore", Type: "boolean", Description: "whether to skip .gitignore'd paths, default true"},
	)
}

func (t *GlobTool) RequiresConfirmation() bool   { return false }
func (t *GlobTool) Init(_ context.Context) error { return nil }
func (t *GlobTool) Close() error                 { return nil }

type globArgs struct {
	Pattern          string `json:"pattern"`
	Path             string `json:"path"`
	RespectGitignore *bool  `json:"respect_gitignore"`
}

func (t *GlobTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a globArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return tool.Failed("", "pattern must not be empty"), nil
	}

	root := a.Path
	if root == "" {
		root = t.workspaceDir
	}
	if root == "" {
		return tool.Failed("", "no base path given and no workspace directory configured"), nil
	}
	root, err := safeResolvePath(root, t.workspaceDir)
	if err != nil {
		return tool.Failed("", err.Error()), nil
	}

	respectIgnore := a.RespectGitignore == nil || *a.RespectGitignore
	var ignoreRules []string
	if respectIgnore {
		ignoreRules = loadGitignore(root)
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (skipDirs[d.Name()] || gitignoreMatches(ignoreRules, rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if gitignoreMatches(ignoreRules, rel, false) {
			return nil
		}
		if matchesGlobPattern(a.Pattern, rel) {
			matches = append(matches, rel)
			if len(matches) >= globMaxResults {
				return errGlobLimitReached
			}
		}
		return nil
	})
	if err != nil && err != errGlobLimitReached {
		return tool.Failed("", fmt.Sprintf("walk failed: %v", err)), nil
	}

	sort.Strings(matches)

	if len(matches) == 0 {
		return tool.OK("", fmt.Sprintf("no files matched %q under %s", a.Pattern, root)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d match(es) for %q:\n", len(matches), a.Pattern)
	for _, m := range matches {
		sb.WriteString(m)
		sb.WriteByte('\n')
	}
	if len(matches) >= globMaxResults {
		fmt.Fprintf(&sb, "(results capped at %d)\n", globMaxResults)
	}

	result := tool.OK("", sb.String())
	result.Data = map[string]any{"matches": matches}
	return result, nil
}

// errGlobLimitReached is a sentinel used only to stop filepath.WalkDir early.
var errGlobLimitReached = fmt.Errorf("glob: result limit reached")

// matchesGlobPattern matches pattern against rel (a slash-separated path
// relative to the walk root). "**" segments match across directory
// boundaries; everything else is a single-segment filepath.Match pattern.
func matchesGlobPattern(pattern, rel string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, rel)
		if ok {
			return true
		}
		// Allow a bare "*.ext" style pattern to match at any depth.
		ok, _ = filepath.Match(pattern, filepath.Base(rel))
		return ok
	}

	prefix, suffix, _ := strings.Cut(pattern, "**")
	prefix = strings.TrimSuffix(prefix, "/")
	suffix = strings.TrimPrefix(suffix, "/")

	if prefix != "" && !strings.HasPrefix(rel, prefix) {
		return false
	}
	remainder := strings.TrimPrefix(rel, prefix)
	remainder = strings.TrimPrefix(remainder, "/")

	if suffix == "" {
		return true
	}
	ok, _ := filepath.Match(suffix, filepath.Base(remainder))
	if ok {
		return true
	}
	ok, _ = filepath.Match(suffix, remainder)
	return ok
}

// loadGitignore reads root/.gitignore and returns its non-comment,
// non-blank pattern lines.
func loadGitignore(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	var rules []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return rules
}

// gitignoreMatches reports whether rel matches any ignore rule. Supports
// the common subset of gitignore syntax: trailing "/" to mean directory-only,
// leading "/" to anchor at the root, and "*"/"?" wildcards within a segment.
func gitignoreMatches(rules []string, rel string, isDir bool) bool {
	for _, rule := range rules {
		dirOnly := strings.HasSuffix(rule, "/")
		pattern := strings.TrimSuffix(rule, "/")
		if dirOnly && !isDir {
			continue
		}
		anchored := strings.HasPrefix(pattern, "/")
		pattern = strings.TrimPrefix(pattern, "/")

		if anchored {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
