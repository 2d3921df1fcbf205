package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListDirectoryTool enumerates a directory's entries.
type ListDirectoryTool struct {
	BaseTool
	root string
}

func NewListDirectoryTool(root string) *ListDirectoryTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Absolute path of the directory to list.",
			},
		},
		"required": []any{"path"},
	}
	return &ListDirectoryTool{
		BaseTool: NewBaseTool("list_directory", "List Directory",
			"Lists the names of files and subdirectories in a directory.",
			schema, false, false),
		root: root,
	}
}

func (t *ListDirectoryTool) ValidateParams(args map[string]any) error {
	if err := t.BaseTool.ValidateParams(args); err != nil {
		return err
	}
	path, err := StringArg(args, "path")
	if err != nil {
		return err
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute, got %q", path)
	}
	return nil
}

func (t *ListDirectoryTool) Describe(args map[string]any) string {
	path, _ := StringArg(args, "path")
	return shortenPath(path, t.root)
}

func (t *ListDirectoryTool) Execute(ctx context.Context, args map[string]any, _ func(string)) (*Result, error) {
	path, err := StringArg(args, "path")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return TextResult(strings.Join(names, "\n")), nil
}
