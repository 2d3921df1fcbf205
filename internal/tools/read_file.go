package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileTool returns file contents to the model. Reads are side-effect
// free, so no confirmation is required.
type ReadFileTool struct {
	BaseTool
	root string
}

// NewReadFileTool builds the tool rooted at the given project directory.
// Paths outside the root are rejected at validation time.
func NewReadFileTool(root string) *ReadFileTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Absolute path of the file to read.",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "1-based line to start reading from.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of lines to return.",
			},
		},
		"required": []any{"path"},
	}
	return &ReadFileTool{
		BaseTool: NewBaseTool("read_file", "Read File",
			"Reads a file from the local filesystem and returns its content.",
			schema, false, false),
		root: root,
	}
}

func (t *ReadFileTool) ValidateParams(args map[string]any) error {
	if err := t.BaseTool.ValidateParams(args); err != nil {
		return err
	}
	path, err := StringArg(args, "path")
	if err != nil {
		return err
	}
	return t.checkPath(path)
}

func (t *ReadFileTool) checkPath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute, got %q", path)
	}
	if t.root != "" && !strings.HasPrefix(filepath.Clean(path)+string(filepath.Separator), filepath.Clean(t.root)+string(filepath.Separator)) {
		return fmt.Errorf("path %q is outside the project root", path)
	}
	return nil
}

func (t *ReadFileTool) Describe(args map[string]any) string {
	path, _ := StringArg(args, "path")
	return shortenPath(path, t.root)
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any, _ func(string)) (*Result, error) {
	path, err := StringArg(args, "path")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	offset, limit := intArg(args, "offset"), intArg(args, "limit")
	if offset > 0 || limit > 0 {
		content = sliceLines(content, offset, limit)
	}
	return TextResult(content), nil
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func sliceLines(content string, offset, limit int) string {
	lines := strings.Split(content, "\n")
	if offset > 0 {
		if offset > len(lines) {
			return ""
		}
		lines = lines[offset-1:]
	}
	if limit > 0 && limit < len(lines) {
		lines = lines[:limit]
	}
	return strings.Join(lines, "\n")
}

func shortenPath(path, root string) string {
	if root == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
