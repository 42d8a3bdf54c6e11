package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestGlobTool(t *testing.T) (*GlobTool, string) {
	t.Helper()
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "internal", "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0644)
	os.WriteFile(filepath.Join(dir, "internal", "a.go"), []byte("package internal"), 0644)
	os.WriteFile(filepath.Join(dir, "internal", "sub", "b.go"), []byte("package sub"), 0644)
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("# readme"), 0644)
	return NewGlobTool(dir), dir
}

func TestGlobTool_MatchesDoubleStarAcrossDepth(t *testing.T) {
	gt, _ := newTestGlobTool(t)
	args, _ := json.Marshal(globArgs{Pattern: "**/*.go"})
	result, err := gt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Content)
	}
	matches, _ := result.Data["matches"].([]string)
	if len(matches) != 3 {
		t.Fatalf("expected 3 .go matches, got %v", matches)
	}
}

func TestGlobTool_MatchesBareExtensionAtAnyDepth(t *testing.T) {
	gt, _ := newTestGlobTool(t)
	args, _ := json.Marshal(globArgs{Pattern: "*.go"})
	result, err := gt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matches, _ := result.Data["matches"].([]string)
	if len(matches) != 3 {
		t.Fatalf("expected *.go to match at any depth, got %v", matches)
	}
}

func TestGlobTool_RespectsGitignore(t *testing.T) {
	gt, dir := newTestGlobTool(t)
	os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("internal/sub/\n"), 0644)

	args, _ := json.Marshal(globArgs{Pattern: "**/*.go"})
	result, err := gt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matches, _ := result.Data["matches"].([]string)
	for _, m := range matches {
		if filepath.Dir(m) == filepath.Join("internal", "sub") {
			t.Errorf("expected ignored directory to be skipped, found %q", m)
		}
	}
}

func TestGlobTool_NoMatchesReturnsSuccessWithEmptyMessage(t *testing.T) {
	gt, _ := newTestGlobTool(t)
	args, _ := json.Marshal(globArgs{Pattern: "*.rs"})
	result, err := gt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success even with zero matches, got %q", result.Content)
	}
}

func TestGlobTool_RejectsEmptyPattern(t *testing.T) {
	gt, _ := newTestGlobTool(t)
	args, _ := json.Marshal(globArgs{Pattern: ""})
	result, err := gt.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for an empty pattern")
	}
}
