package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestCKGTool(t *testing.T) (*CKGTool, string) {
	t.Helper()
	dir := t.TempDir()
	goSrc := "package sample\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n\ntype Widget struct {\n\tName string\n}\n"
	os.WriteFile(filepath.Join(dir, "sample.go"), []byte(goSrc), 0644)

	pySrc := "def greet(name):\n    return \"hi \" + name\n\n\nclass Greeter:\n    def hello(self):\n        pass\n"
	os.WriteFile(filepath.Join(dir, "sample.py"), []byte(pySrc), 0644)

	return NewCKGTool(dir), dir
}

func execCKG(t *testing.T, ct *CKGTool, a ckgArgs) (jsonResult, bool) {
	t.Helper()
	args, _ := json.Marshal(a)
	result, err := ct.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return jsonResult{content: result.Content, data: result.Data}, result.Success
}

type jsonResult struct {
	content string
	data    map[string]any
}

func TestCKGTool_BuildExtractsGoAndPythonSymbols(t *testing.T) {
	ct, dir := newTestCKGTool(t)
	dbPath := filepath.Join(dir, "ckg.db")
	_, ok := execCKG(t, ct, ckgArgs{Operation: "build", Path: dir, DBPath: dbPath})
	if !ok {
		t.Fatal("expected build to succeed")
	}

	res, ok := execCKG(t, ct, ckgArgs{Operation: "stats", DBPath: dbPath})
	if !ok {
		t.Fatal("expected stats to succeed")
	}
	files, _ := res.data["files"].(int)
	if files != 2 {
		t.Errorf("expected 2 distinct files, got %v", res.data["files"])
	}
}

func TestCKGTool_QueryMatchesBySubstring(t *testing.T) {
	ct, dir := newTestCKGTool(t)
	dbPath := filepath.Join(dir, "ckg.db")
	execCKG(t, ct, ckgArgs{Operation: "build", Path: dir, DBPath: dbPath})

	res, ok := execCKG(t, ct, ckgArgs{Operation: "query", Query: "Widget", DBPath: dbPath})
	if !ok {
		t.Fatal("expected query to succeed")
	}
	symbols, _ := res.data["symbols"].([]ckgSymbol)
	if len(symbols) != 1 || symbols[0].Name != "Widget" {
		t.Errorf("expected to find Widget struct, got %v", symbols)
	}
}

func TestCKGTool_QueryRequiresNonEmptyQuery(t *testing.T) {
	ct, dir := newTestCKGTool(t)
	dbPath := filepath.Join(dir, "ckg.db")
	execCKG(t, ct, ckgArgs{Operation: "build", Path: dir, DBPath: dbPath})

	_, ok := execCKG(t, ct, ckgArgs{Operation: "query", DBPath: dbPath})
	if ok {
		t.Fatal("expected failure for empty query")
	}
}

func TestCKGTool_AnalyzeGroupsByType(t *testing.T) {
	ct, dir := newTestCKGTool(t)
	dbPath := filepath.Join(dir, "ckg.db")
	execCKG(t, ct, ckgArgs{Operation: "build", Path: dir, DBPath: dbPath})

	res, ok := execCKG(t, ct, ckgArgs{Operation: "analyze", Path: filepath.Join(dir, "sample.go"), DBPath: dbPath})
	if !ok {
		t.Fatal("expected analyze to succeed")
	}
	byType, _ := res.data["by_type"].(map[string]any)
	if _, hasFunc := byType["function"]; !hasFunc {
		t.Errorf("expected a function entry, got %v", byType)
	}
	if _, hasStruct := byType["struct"]; !hasStruct {
		t.Errorf("expected a struct entry, got %v", byType)
	}
}

func TestCKGTool_BuildRespectsFileExtensionFilter(t *testing.T) {
	ct, dir := newTestCKGTool(t)
	dbPath := filepath.Join(dir, "ckg.db")
	_, ok := execCKG(t, ct, ckgArgs{Operation: "build", Path: dir, DBPath: dbPath, FileExtensions: []string{".go"}})
	if !ok {
		t.Fatal("expected build to succeed")
	}

	res, _ := execCKG(t, ct, ckgArgs{Operation: "stats", DBPath: dbPath})
	files, _ := res.data["files"].(int)
	if files != 1 {
		t.Errorf("expected only the .go file to be scanned, got %v", res.data["files"])
	}
}

func TestCKGTool_PythonBlockEndCoversMethodBody(t *testing.T) {
	lines := []string{"class Greeter:", "    def hello(self):", "        pass", "", "x = 1"}
	end := pythonBlockEnd(lines, 1)
	if end != 3 {
		t.Errorf("expected block to end at line 3, got %d", end)
	}
}
