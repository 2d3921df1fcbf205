package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileTool creates or overwrites a file. Writes are gated behind an
// edit confirmation and are restorable via checkpoints.
type WriteFileTool struct {
	BaseTool
	root string
}

func NewWriteFileTool(root string) *WriteFileTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Absolute path of the file to write.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Full content to write.",
			},
		},
		"required": []any{"file_path", "content"},
	}
	return &WriteFileTool{
		BaseTool: NewBaseTool("write_file", "Write File",
			"Writes content to a file, creating it if necessary.",
			schema, false, false),
		root: root,
	}
}

func (t *WriteFileTool) ValidateParams(args map[string]any) error {
	if err := t.BaseTool.ValidateParams(args); err != nil {
		return err
	}
	path, err := StringArg(args, "file_path")
	if err != nil {
		return err
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("file_path must be absolute, got %q", path)
	}
	return nil
}

func (t *WriteFileTool) Describe(args map[string]any) string {
	path, _ := StringArg(args, "file_path")
	return fmt.Sprintf("Write %s", shortenPath(path, t.root))
}

func (t *WriteFileTool) ShouldConfirm(ctx context.Context, args map[string]any) (*Confirmation, error) {
	path, err := StringArg(args, "file_path")
	if err != nil {
		return nil, err
	}
	proposed, err := StringArg(args, "content")
	if err != nil {
		return nil, err
	}
	current, err := readIfExists(path)
	if err != nil {
		return nil, err
	}
	return &Confirmation{
		Kind:     ConfirmEdit,
		Title:    fmt.Sprintf("Confirm write: %s", shortenPath(path, t.root)),
		FileName: path,
		FileDiff: UnifiedDiff(shortenPath(path, t.root), current, proposed),
	}, nil
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any, _ func(string)) (*Result, error) {
	path, err := StringArg(args, "file_path")
	if err != nil {
		return nil, err
	}
	content, err := StringArg(args, "content")
	if err != nil {
		return nil, err
	}

	current, err := readIfExists(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	rel := shortenPath(path, t.root)
	return &Result{
		LLMContent: TextResult(fmt.Sprintf("Wrote %d bytes to %s.", len(content), rel)).LLMContent,
		Display: &FileDiff{
			FileName: rel,
			Diff:     UnifiedDiff(rel, current, content),
		},
	}, nil
}

// ModifyContext lets the user edit the proposed content before approving.
func (t *WriteFileTool) ModifyContext() *ModifyContext {
	return &ModifyContext{
		FilePath: func(args map[string]any) string {
			path, _ := StringArg(args, "file_path")
			return path
		},
		CurrentContent: func(args map[string]any) (string, error) {
			path, err := StringArg(args, "file_path")
			if err != nil {
				return "", err
			}
			return readIfExists(path)
		},
		ProposedContent: func(args map[string]any) (string, error) {
			return StringArg(args, "content")
		},
		UpdatedParams: func(_, modified string, args map[string]any) map[string]any {
			out := make(map[string]any, len(args))
			for k, v := range args {
				out[k] = v
			}
			out["content"] = modified
			return out
		},
	}
}

func readIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
