package builtin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/jokas3322/coro-code/internal/core"
	"github.com/jokas3322/coro-code/internal/tool"
)

const ckgDefaultDBPath = "./ckg.db"

// symbolPattern associates a regexp with the symbol kind it captures. The
// pattern's last capture group must be the symbol name.
type symbolPattern struct {
	kind string
	re   *regexp.Regexp
}

// languagePatterns maps a source file extension to its language name and the
// symbol patterns used to extract declarations from it. This is a syntactic,
// regexp-based extractor rather than a full parser — it is accurate for
// top-level declarations in conventionally formatted source and may miss or
// misattribute deeply nested or macro-generated ones.
var languagePatterns = map[string]struct {
	language string
	patterns []symbolPattern
}{
	".go": {"go", []symbolPattern{
		{"function", regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(\w+)\s*\(`)},
		{"struct", regexp.MustCompile(`^type\s+(\w+)\s+struct\b`)},
		{"interface", regexp.MustCompile(`^type\s+(\w+)\s+interface\b`)},
	}},
	".rs": {"rust", []symbolPattern{
		{"function", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)`)},
		{"struct", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)`)},
		{"enum", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+(\w+)`)},
		{"trait", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)`)},
		{"module", regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)`)},
	}},
	".py": {"python", []symbolPattern{
		{"function", regexp.MustCompile(`^(\s*)def\s+(\w+)\s*\(`)},
		{"class", regexp.MustCompile(`^(\s*)class\s+(\w+)\s*[(:]`)},
	}},
	".js": {"javascript", []symbolPattern{
		{"function", regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)},
		{"class", regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)},
	}},
	".jsx": {"javascript", []symbolPattern{
		{"function", regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)},
		{"class", regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)},
	}},
	".ts": {"typescript", []symbolPattern{
		{"function", regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)},
		{"class", regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)},
		{"interface", regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)`)},
	}},
	".tsx": {"typescript", []symbolPattern{
		{"function", regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)},
		{"class", regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)},
		{"interface", regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)`)},
	}},
	".java": {"java", []symbolPattern{
		{"class", regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:static\s+)?(?:final\s+)?class\s+(\w+)`)},
		{"interface", regexp.MustCompile(`^\s*(?:public|private|protected)?\s*interface\s+(\w+)`)},
		{"method", regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?(?:final\s+)?[\w<>\[\]]+\s+(\w+)\s*\([^;]*$`)},
	}},
	".c": {"c", []symbolPattern{
		{"function", regexp.MustCompile(`^\w[\w\s\*]*\s(\w+)\s*\([^;]*\)\s*\{?\s*$`)},
		{"struct", regexp.MustCompile(`^struct\s+(\w+)\s*\{`)},
	}},
	".h": {"c", []symbolPattern{
		{"struct", regexp.MustCompile(`^struct\s+(\w+)\s*\{`)},
	}},
	".cpp": {"cpp", []symbolPattern{
		{"function", regexp.MustCompile(`^\w[\w\s\*:]*\s(\w+)\s*\([^;]*\)\s*\{?\s*$`)},
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
		{"struct", regexp.MustCompile(`^struct\s+(\w+)\s*\{?`)},
	}},
	".hpp": {"cpp", []symbolPattern{
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
		{"struct", regexp.MustCompile(`^struct\s+(\w+)\s*\{?`)},
	}},
	".cc": {"cpp", []symbolPattern{
		{"function", regexp.MustCompile(`^\w[\w\s\*:]*\s(\w+)\s*\([^;]*\)\s*\{?\s*$`)},
		{"class", regexp.MustCompile(`^class\s+(\w+)`)},
	}},
}

// ckgSymbol is one row of the symbols table.
type ckgSymbol struct {
	Name      string
	Type      string
	File      string
	StartLine int
	EndLine   int
	Parent    string
	Language  string
}

// CKGTool is the ckg_tool: a syntactic code-knowledge-graph backed by an
// embedded SQLite database, keyed by (name, type, file, start_line,
// end_line, parent, language).
type CKGTool struct {
	workspaceDir string

	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

func NewCKGTool(workspaceDir string) *CKGTool {
	return &CKGTool{workspaceDir: workspaceDir}
}

func (t *CKGTool) Name() string { return "ckg_tool" }
func (t *CKGTool) Description() string {
	return "Build and query a code-knowledge graph: extract functions, classes, " +
		"structs and similar declarations from source files into a local " +
		"database, then query, analyze, or summarize them."
}

func (t *CKGTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "operation", Type: "string", Description: "one of build, query, analyze, stats", Required: true,
			Enum: []string{"build", "query", "analyze", "stats"}},
		tool.SchemaParam{Name: "path", Type: "string", Description: "directory to scan (build) or file to inspect (analyze)"},
		tool.SchemaParam{Name: "query", Type: "string", Description: "substring to match against name/type/file (query)"},
		tool.SchemaParam{Name: "db_path", Type: "string", Description: "path to the SQLite database file, default ./ckg.db"},
		tool.SchemaParam{Name: "recursive", Type: "boolean", Description: "whether build descends into subdirectories, default true"},
		tool.SchemaParam{Name: "file_extensions", Type: "array", Description: "restrict build to these extensions, e.g. ['.go','.rs']",
			Items: json.RawMessage(`{"type":"string"}`)},
	)
}

func (t *CKGTool) RequiresConfirmation() bool   { return false }
func (t *CKGTool) Init(_ context.Context) error { return nil }

func (t *CKGTool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

type ckgArgs struct {
	Operation      string   `json:"operation"`
	Path           string   `json:"path"`
	Query          string   `json:"query"`
	DBPath         string   `json:"db_path"`
	Recursive      *bool    `json:"recursive"`
	FileExtensions []string `json:"file_extensions"`
}

func (t *CKGTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a ckgArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failed("", fmt.Sprintf("failed to parse arguments: %v", err)), nil
	}
	if a.DBPath == "" {
		a.DBPath = ckgDefaultDBPath
	}

	db, err := t.open(a.DBPath)
	if err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: open database: %w", err)
	}

	switch a.Operation {
	case "build":
		return t.build(ctx, db, a)
	case "query":
		return t.query(db, a)
	case "analyze":
		return t.analyze(db, a)
	case "stats":
		return t.stats(db)
	default:
		return tool.Failed("", fmt.Sprintf("unknown operation %q", a.Operation)), nil
	}
}

// open lazily opens (or reopens, if db_path changed) the backing database.
func (t *CKGTool) open(dbPath string) (*sql.DB, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db != nil && t.dbPath == dbPath {
		return t.db, nil
	}
	if t.db != nil {
		_ = t.db.Close()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	schema := `
		CREATE TABLE IF NOT EXISTS symbols (
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			file TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			parent TEXT,
			language TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
		CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	t.db = db
	t.dbPath = dbPath
	return db, nil
}

// ckgFileJob is one file queued for symbol extraction during build.
type ckgFileJob struct {
	path     string
	ext      string
	language string
}

// ckgExecResult is the outcome of extracting symbols from one file. erred
// distinguishes a fallback result (extraction failed after retries) from a
// file that legitimately produced zero symbols.
type ckgExecResult struct {
	symbols []ckgSymbol
	erred   bool
	errText string
}

// ckgBuildState is the shared state threaded through the build Node's
// Prep -> Exec -> Post lifecycle: the walk configuration going in, the
// persisted counts and errors coming out.
type ckgBuildState struct {
	root      string
	recursive bool
	extFilter map[string]bool

	db           *sql.DB
	filesScanned int
	symbolsFound int
	errs         []string
}

// ckgBuildNode implements core.BaseNode for the build operation: Prep walks
// the directory and collects per-file jobs, Exec extracts symbols from one
// file (retried once for transient I/O errors), Post persists the batch and
// accumulates the error summary.
type ckgBuildNode struct{}

func (ckgBuildNode) Prep(state *ckgBuildState) []ckgFileJob {
	var jobs []ckgFileJob
	err := filepath.WalkDir(state.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			state.errs = append(state.errs, fmt.Sprintf("%s: %v", path, walkErr))
			return nil
		}
		if d.IsDir() {
			if path != state.root {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				if !state.recursive {
					return filepath.SkipDir
				}
			}
			return nil
		}

		ext := filepath.Ext(path)
		lang, ok := languagePatterns[ext]
		if !ok {
			return nil
		}
		if state.extFilter != nil && !state.extFilter[ext] {
			return nil
		}
		jobs = append(jobs, ckgFileJob{path: path, ext: ext, language: lang.language})
		return nil
	})
	if err != nil {
		state.errs = append(state.errs, fmt.Sprintf("walk %s: %v", state.root, err))
	}
	return jobs
}

func (ckgBuildNode) Exec(ctx context.Context, job ckgFileJob) (ckgExecResult, error) {
	if err := ctx.Err(); err != nil {
		return ckgExecResult{}, err
	}
	symbols, err := extractSymbols(job.path, job.ext, job.language)
	if err != nil {
		return ckgExecResult{}, err
	}
	return ckgExecResult{symbols: symbols}, nil
}

func (ckgBuildNode) ExecFallback(err error) ckgExecResult {
	return ckgExecResult{erred: true, errText: err.Error()}
}

func (ckgBuildNode) Post(state *ckgBuildState, jobs []ckgFileJob, results ...ckgExecResult) core.Action {
	for i, job := range jobs {
		res := results[i]
		if res.erred {
			state.errs = append(state.errs, fmt.Sprintf("%s: %s", job.path, res.errText))
			continue
		}
		state.filesScanned++
		if len(res.symbols) == 0 {
			continue
		}
		if err := persistSymbols(state.db, job.path, res.symbols); err != nil {
			state.errs = append(state.errs, fmt.Sprintf("%s: %v", job.path, err))
			continue
		}
		state.symbolsFound += len(res.symbols)
	}
	return core.ActionDefault
}

// persistSymbols replaces all symbols previously recorded for file with the
// freshly extracted set, inside one transaction.
func persistSymbols(db *sql.DB, file string, symbols []ckgSymbol) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file = ?`, file); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear old symbols: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO symbols(name, type, file, start_line, end_line, parent, language) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	for _, sym := range symbols {
		if _, err := stmt.Exec(sym.Name, sym.Type, sym.File, sym.StartLine, sym.EndLine, sym.Parent, sym.Language); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", sym.Name, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *CKGTool) build(ctx context.Context, db *sql.DB, a ckgArgs) (tool.Result, error) {
	root := a.Path
	if root == "" {
		root = t.workspaceDir
	}
	if root == "" {
		return tool.Failed("", "no path given and no workspace directory configured"), nil
	}
	if t.workspaceDir != "" {
		resolved, err := safeResolvePath(root, t.workspaceDir)
		if err != nil {
			return tool.Failed("", err.Error()), nil
		}
		root = resolved
	}

	var extFilter map[string]bool
	if len(a.FileExtensions) > 0 {
		extFilter = make(map[string]bool, len(a.FileExtensions))
		for _, ext := range a.FileExtensions {
			extFilter[ext] = true
		}
	}

	state := &ckgBuildState{
		root:      root,
		recursive: a.Recursive == nil || *a.Recursive,
		extFilter: extFilter,
		db:        db,
	}
	node := core.NewNode[ckgBuildState, ckgFileJob, ckgExecResult](ckgBuildNode{}, 1)
	node.Run(ctx, state)

	var sb strings.Builder
	fmt.Fprintf(&sb, "scanned %d file(s), found %d symbol(s)\n", state.filesScanned, state.symbolsFound)
	if len(state.errs) > 0 {
		fmt.Fprintf(&sb, "%d error(s):\n", len(state.errs))
		for _, e := range state.errs {
			sb.WriteString("- " + e + "\n")
		}
	}

	result := tool.OK("", sb.String())
	result.Data = map[string]any{
		"files_scanned": state.filesScanned,
		"symbols_found": state.symbolsFound,
		"errors":        state.errs,
	}
	return result, nil
}

func (t *CKGTool) query(db *sql.DB, a ckgArgs) (tool.Result, error) {
	if strings.TrimSpace(a.Query) == "" {
		return tool.Failed("", "query must not be empty"), nil
	}
	like := "%" + a.Query + "%"
	rows, err := db.Query(
		`SELECT name, type, file, start_line, end_line, parent, language FROM symbols
		 WHERE name LIKE ? OR type LIKE ? OR file LIKE ?
		 ORDER BY file, start_line`, like, like, like)
	if err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: query: %w", err)
	}
	defer rows.Close()

	symbols, err := scanSymbols(rows)
	if err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: scan results: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d match(es) for %q:\n", len(symbols), a.Query)
	for _, s := range symbols {
		fmt.Fprintf(&sb, "- %s %s in %s:%d-%d\n", s.Type, s.Name, s.File, s.StartLine, s.EndLine)
	}

	result := tool.OK("", sb.String())
	result.Data = map[string]any{"symbols": symbols}
	return result, nil
}

func (t *CKGTool) analyze(db *sql.DB, a ckgArgs) (tool.Result, error) {
	if strings.TrimSpace(a.Path) == "" {
		return tool.Failed("", "path is required"), nil
	}
	rows, err := db.Query(
		`SELECT name, type, file, start_line, end_line, parent, language FROM symbols
		 WHERE file = ? ORDER BY start_line`, a.Path)
	if err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: analyze: %w", err)
	}
	defer rows.Close()

	symbols, err := scanSymbols(rows)
	if err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: scan results: %w", err)
	}

	byType := make(map[string][]ckgSymbol)
	for _, s := range symbols {
		byType[s.Type] = append(byType[s.Type], s)
	}
	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d symbol(s) across %d type(s)\n", a.Path, len(symbols), len(types))
	for _, typ := range types {
		fmt.Fprintf(&sb, "%s (%d):\n", typ, len(byType[typ]))
		for _, s := range byType[typ] {
			fmt.Fprintf(&sb, "  - %s (line %d)\n", s.Name, s.StartLine)
		}
	}

	grouped := make(map[string]any, len(byType))
	for typ, syms := range byType {
		grouped[typ] = syms
	}
	result := tool.OK("", sb.String())
	result.Data = map[string]any{"by_type": grouped}
	return result, nil
}

func (t *CKGTool) stats(db *sql.DB) (tool.Result, error) {
	rows, err := db.Query(`SELECT type, language, COUNT(*) FROM symbols GROUP BY type, language`)
	if err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: stats: %w", err)
	}
	defer rows.Close()

	type statKey struct{ typ, lang string }
	counts := make(map[statKey]int)
	for rows.Next() {
		var k statKey
		var n int
		if err := rows.Scan(&k.typ, &k.lang, &n); err != nil {
			return tool.Result{}, fmt.Errorf("ckg_tool: scan stats: %w", err)
		}
		counts[k] = n
	}
	if err := rows.Err(); err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: iterate stats: %w", err)
	}

	var fileCount int
	if err := db.QueryRow(`SELECT COUNT(DISTINCT file) FROM symbols`).Scan(&fileCount); err != nil {
		return tool.Result{}, fmt.Errorf("ckg_tool: count files: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d distinct file(s)\n", fileCount)
	byType := make(map[string]int)
	byLanguage := make(map[string]int)
	for k, n := range counts {
		byType[k.typ] += n
		byLanguage[k.lang] += n
	}
	typeNames := make([]string, 0, len(byType))
	for typ := range byType {
		typeNames = append(typeNames, typ)
	}
	sort.Strings(typeNames)
	for _, typ := range typeNames {
		fmt.Fprintf(&sb, "%s: %d\n", typ, byType[typ])
	}

	result := tool.OK("", sb.String())
	result.Data = map[string]any{
		"files":       fileCount,
		"by_type":     byType,
		"by_language": byLanguage,
	}
	return result, nil
}

func scanSymbols(rows *sql.Rows) ([]ckgSymbol, error) {
	var symbols []ckgSymbol
	for rows.Next() {
		var s ckgSymbol
		var parent sql.NullString
		if err := rows.Scan(&s.Name, &s.Type, &s.File, &s.StartLine, &s.EndLine, &parent, &s.Language); err != nil {
			return nil, err
		}
		s.Parent = parent.String
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// extractSymbols reads file and matches each line against the symbol
// patterns registered for ext, producing one ckgSymbol per match. end_line
// is estimated with a brace-matching heuristic for curly-brace languages and
// an indentation heuristic for Python; other languages fall back to
// start_line == end_line.
func extractSymbols(path, ext, language string) ([]ckgSymbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	lang := languagePatterns[ext]

	var symbols []ckgSymbol
	for i, line := range lines {
		for _, sp := range lang.patterns {
			m := sp.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[len(m)-1]
			if name == "" {
				continue
			}
			start := i + 1
			end := start
			if ext == ".py" {
				end = pythonBlockEnd(lines, i)
			} else {
				end = braceBlockEnd(lines, i)
			}
			symbols = append(symbols, ckgSymbol{
				Name: name, Type: sp.kind, File: path,
				StartLine: start, EndLine: end, Language: language,
			})
			break
		}
	}
	return symbols, nil
}

// braceBlockEnd finds the line of the closing brace matching the first "{"
// on or after startIdx, scanning at most the rest of the file. If no
// unambiguous match is found, it returns the starting line.
func braceBlockEnd(lines []string, startIdx int) int {
	depth := 0
	seenOpen := false
	for i := startIdx; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
				if seenOpen && depth == 0 {
					return i + 1
				}
			}
		}
	}
	return startIdx + 1
}

// pythonBlockEnd finds the last line belonging to the indented block started
// at startIdx, by scanning forward until a non-blank line with indentation
// less than or equal to the definition line's indentation appears.
func pythonBlockEnd(lines []string, startIdx int) int {
	baseIndent := leadingSpaces(lines[startIdx])
	last := startIdx
	for i := startIdx + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if leadingSpaces(lines[i]) <= baseIndent {
			break
		}
		last = i
	}
	return last + 1
}

func leadingSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}
