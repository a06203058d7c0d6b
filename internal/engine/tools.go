package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"parley.app/switchboard/common/llm"
)

const (
	maxReadLines     = 500         // Max lines returned by read_file
	defaultReadLines = 200         // Default lines if not specified
	maxLineLength    = 2000        // Truncate lines longer than this
	maxListEntries   = 200         // Max entries returned by list_dir
	maxSearchMatches = 50          // Max matches returned by search
	maxScanBytes     = 1024 * 1024 // Line buffer cap while searching
)

// Tool parameter structs

// ReadFileParams for reading workspace files.
type ReadFileParams struct {
	Path   string `json:"path" jsonschema:"required,description=Path of the file to read (relative to the workspace root)"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=Line number to start reading from (1-indexed)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Number of lines to read (default 200, max 500)"`
}

// WriteFileParams for creating or replacing workspace files.
type WriteFileParams struct {
	Path    string `json:"path" jsonschema:"required,description=Path of the file to write (relative to the workspace root). Parent directories are created as needed."`
	Content string `json:"content" jsonschema:"required,description=Full file content. Replaces any existing content."`
}

// ListDirParams for listing a workspace directory.
type ListDirParams struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list (relative to the workspace root). Defaults to the workspace root."`
}

// SearchParams for content search across workspace files.
type SearchParams struct {
	Pattern    string `json:"pattern" jsonschema:"required,description=Regex pattern to search for in file contents"`
	Path       string `json:"path,omitempty" jsonschema:"description=File or directory to search. Defaults to the workspace root."`
	Glob       string `json:"glob,omitempty" jsonschema:"description=Filter files by name pattern (e.g. '*.md')"`
	IgnoreCase bool   `json:"ignore_case,omitempty" jsonschema:"description=Case insensitive search"`
}

// WorkspaceTools provides the file tools the agent uses to work inside
// a session's workspace. Every path is confined to the workspace root.
type WorkspaceTools struct {
	root        string
	definitions []llm.Tool
}

// NewWorkspaceTools creates the tool set for one workspace.
func NewWorkspaceTools(root string) *WorkspaceTools {
	t := &WorkspaceTools{root: root}

	t.definitions = []llm.Tool{
		{
			Name: "read_file",
			Description: `Read a file with optional line range. Returns numbered lines.

Examples:
  read_file(path="README.md")                        # First 200 lines
  read_file(path="docs/notes.md", offset=50, limit=100)  # Lines 50-149

Use this after list_dir/search to examine specific files.`,
			Parameters: llm.GenerateSchemaFrom(ReadFileParams{}),
		},
		{
			Name: "write_file",
			Description: `Create or replace a file in the workspace.

Examples:
  write_file(path="tasks/plan-q3.md", content="# Plan Q3\n...")

Writes the full content. Read the file first when editing so existing
content is not lost.`,
			Parameters: llm.GenerateSchemaFrom(WriteFileParams{}),
		},
		{
			Name: "list_dir",
			Description: `List a directory. Directories are marked with a trailing slash.

Examples:
  list_dir()                  # Workspace root
  list_dir(path="journal/")   # Entity directory

Use this to discover files before reading them.`,
			Parameters: llm.GenerateSchemaFrom(ListDirParams{}),
		},
		{
			Name: "search",
			Description: `Search file contents with regex. Returns matching lines with file:line references.

Examples:
  search(pattern="roadmap")                      # Across the workspace
  search(pattern="TODO|FIXME", glob="*.md")      # TODOs in markdown
  search(pattern="status: open", path="tasks/")  # Within one directory

Use this to find where topics occur across the workspace.`,
			Parameters: llm.GenerateSchemaFrom(SearchParams{}),
		},
	}

	return t
}

// Definitions returns tool definitions for the LLM.
func (t *WorkspaceTools) Definitions() []llm.Tool {
	return t.definitions
}

// Execute runs a tool by name and returns output.
func (t *WorkspaceTools) Execute(ctx context.Context, name, arguments string) (string, error) {
	switch name {
	case "read_file":
		return t.executeReadFile(ctx, arguments)
	case "write_file":
		return t.executeWriteFile(ctx, arguments)
	case "list_dir":
		return t.executeListDir(ctx, arguments)
	case "search":
		return t.executeSearch(ctx, arguments)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (t *WorkspaceTools) executeReadFile(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[ReadFileParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse read_file params: %w", err)
	}

	if params.Path == "" {
		return "Error: path is required", nil
	}

	fullPath := filepath.Join(t.root, params.Path)
	if !pathWithinRoot(t.root, fullPath) {
		return "Error: path outside workspace", nil
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", params.Path), nil
		}
		return fmt.Sprintf("Error: cannot read file: %s", err), nil
	}
	defer file.Close()

	offset := params.Offset
	if offset < 1 {
		offset = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = defaultReadLines
	}
	if limit > maxReadLines {
		limit = maxReadLines
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanBytes)

	var result strings.Builder
	lineNum := 0
	linesRead := 0

	for scanner.Scan() {
		lineNum++
		if lineNum < offset {
			continue
		}
		if linesRead >= limit {
			break
		}

		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "..."
		}
		fmt.Fprintf(&result, "%6d\t%s\n", lineNum, line)
		linesRead++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Sprintf("Error reading file: %s", err), nil
	}

	if linesRead == 0 {
		if lineNum == 0 {
			return "File is empty", nil
		}
		return fmt.Sprintf("No lines at offset %d (file has %d lines)", offset, lineNum), nil
	}

	info := fmt.Sprintf("\n[Read lines %d-%d of %s", offset, offset+linesRead-1, params.Path)
	if lineNum > offset+linesRead-1 {
		info += fmt.Sprintf(". File continues to line %d.]", lineNum)
	} else {
		info += ". End of file.]"
	}
	result.WriteString(info)

	return withTokenEstimate(result.String()), nil
}

func (t *WorkspaceTools) executeWriteFile(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[WriteFileParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse write_file params: %w", err)
	}

	if params.Path == "" {
		return "Error: path is required", nil
	}

	fullPath := filepath.Join(t.root, params.Path)
	if !pathWithinRoot(t.root, fullPath) {
		return "Error: path outside workspace", nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Sprintf("Error: cannot create directory: %s", err), nil
	}
	if err := os.WriteFile(fullPath, []byte(params.Content), 0o644); err != nil {
		return fmt.Sprintf("Error: cannot write file: %s", err), nil
	}

	return fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path), nil
}

func (t *WorkspaceTools) executeListDir(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[ListDirParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse list_dir params: %w", err)
	}

	dir := t.root
	if params.Path != "" {
		dir = filepath.Join(t.root, params.Path)
	}
	if !pathWithinRoot(t.root, dir) {
		return "Error: path outside workspace", nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: directory not found: %s", params.Path), nil
		}
		return fmt.Sprintf("Error: cannot list directory: %s", err), nil
	}
	if len(entries) == 0 {
		return "Directory is empty", nil
	}

	var result strings.Builder
	shown := 0
	for _, entry := range entries {
		if shown >= maxListEntries {
			break
		}
		if entry.IsDir() {
			result.WriteString(entry.Name() + "/\n")
		} else {
			result.WriteString(entry.Name() + "\n")
		}
		shown++
	}
	if len(entries) > maxListEntries {
		fmt.Fprintf(&result, "\n[%d entries. Showing first %d.]", len(entries), maxListEntries)
	}

	return result.String(), nil
}

// errSearchDone stops the workspace walk once enough matches are found.
var errSearchDone = errors.New("search done")

func (t *WorkspaceTools) executeSearch(ctx context.Context, arguments string) (string, error) {
	params, err := llm.ParseToolArguments[SearchParams](arguments)
	if err != nil {
		return "", fmt.Errorf("parse search params: %w", err)
	}

	if params.Pattern == "" {
		return "Error: pattern is required", nil
	}
	pattern := params.Pattern
	if params.IgnoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("Error: invalid pattern: %s", err), nil
	}

	searchPath := t.root
	if params.Path != "" {
		searchPath = filepath.Join(t.root, params.Path)
	}
	if !pathWithinRoot(t.root, searchPath) {
		return "Error: path outside workspace", nil
	}

	var (
		result  strings.Builder
		matched int
	)
	walkErr := filepath.WalkDir(searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != searchPath && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if params.Glob != "" {
			if ok, _ := filepath.Match(params.Glob, d.Name()); !ok {
				return nil
			}
		}
		matched += t.searchFile(re, path, &result, maxSearchMatches-matched)
		if matched >= maxSearchMatches {
			return errSearchDone
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errSearchDone) {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return "Search timed out. Use more specific pattern or path.", nil
		}
		return fmt.Sprintf("Error: search failed: %s", walkErr), nil
	}

	if matched == 0 {
		return fmt.Sprintf("No matches for pattern: %s", params.Pattern), nil
	}
	if matched >= maxSearchMatches {
		fmt.Fprintf(&result, "\n[Showing %d matches. Add glob filter or refine pattern.]", maxSearchMatches)
	}

	return withTokenEstimate(result.String()), nil
}

// searchFile scans one file and appends up to limit matches as
// path:line:text rows. Binary files are abandoned at the first NUL.
func (t *WorkspaceTools) searchFile(re *regexp.Regexp, path string, out *strings.Builder, limit int) int {
	if limit <= 0 {
		return 0
	}

	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	rel, err := filepath.Rel(t.root, path)
	if err != nil {
		rel = path
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanBytes)

	found := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.ContainsRune(line, '\x00') {
			return found
		}
		if !re.MatchString(line) {
			continue
		}
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "..."
		}
		fmt.Fprintf(out, "%s:%d:%s\n", rel, lineNum, line)
		found++
		if found >= limit {
			break
		}
	}
	return found
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "__pycache__":
		return true
	}
	return strings.HasPrefix(name, ".")
}

func pathWithinRoot(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// withTokenEstimate appends a token cost estimate.
func withTokenEstimate(output string) string {
	tokenEstimate := len(output) / 4 // ~4 chars per token
	lineCount := strings.Count(output, "\n")
	return output + fmt.Sprintf("\n\n[~%d tokens, %d lines]", tokenEstimate, lineCount)
}
