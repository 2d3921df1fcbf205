package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReplaceTool performs an exact-string edit inside an existing file. It is
// gated behind an edit confirmation, restorable via checkpoints, and
// modifiable in an external editor.
type ReplaceTool struct {
	BaseTool
	root string
}

func NewReplaceTool(root string) *ReplaceTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Absolute path of the file to modify.",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "Exact text to replace. Must match the file exactly.",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "Replacement text.",
			},
			"expected_replacements": map[string]any{
				"type":        "integer",
				"description": "Number of occurrences to replace. Defaults to 1.",
			},
		},
		"required": []any{"file_path", "old_string", "new_string"},
	}
	return &ReplaceTool{
		BaseTool: NewBaseTool("replace", "Edit",
			"Replaces an exact string within a file.",
			schema, false, false),
		root: root,
	}
}

func (t *ReplaceTool) ValidateParams(args map[string]any) error {
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
	oldStr, err := StringArg(args, "old_string")
	if err != nil {
		return err
	}
	newStr, err := StringArg(args, "new_string")
	if err != nil {
		return err
	}
	if oldStr == newStr {
		return fmt.Errorf("old_string and new_string are identical")
	}
	return nil
}

func (t *ReplaceTool) Describe(args map[string]any) string {
	path, _ := StringArg(args, "file_path")
	return fmt.Sprintf("Edit %s", shortenPath(path, t.root))
}

func (t *ReplaceTool) ShouldConfirm(ctx context.Context, args map[string]any) (*Confirmation, error) {
	current, proposed, err := t.apply(args)
	if err != nil {
		return nil, err
	}
	path, _ := StringArg(args, "file_path")
	return &Confirmation{
		Kind:     ConfirmEdit,
		Title:    fmt.Sprintf("Confirm edit: %s", shortenPath(path, t.root)),
		FileName: path,
		FileDiff: UnifiedDiff(shortenPath(path, t.root), current, proposed),
	}, nil
}

func (t *ReplaceTool) Execute(ctx context.Context, args map[string]any, _ func(string)) (*Result, error) {
	current, proposed, err := t.apply(args)
	if err != nil {
		return nil, err
	}
	path, _ := StringArg(args, "file_path")
	if err := os.WriteFile(path, []byte(proposed), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	rel := shortenPath(path, t.root)
	return &Result{
		LLMContent: TextResult(fmt.Sprintf("Edited %s.", rel)).LLMContent,
		Display: &FileDiff{
			FileName: rel,
			Diff:     UnifiedDiff(rel, current, proposed),
		},
	}, nil
}

// apply computes the current and post-edit content without touching the
// file. Match-count mismatches surface here so both the confirmation and the
// execution report the same error.
func (t *ReplaceTool) apply(args map[string]any) (current, proposed string, err error) {
	path, err := StringArg(args, "file_path")
	if err != nil {
		return "", "", err
	}
	oldStr, err := StringArg(args, "old_string")
	if err != nil {
		return "", "", err
	}
	newStr, err := StringArg(args, "new_string")
	if err != nil {
		return "", "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	current = string(data)

	expected := intArg(args, "expected_replacements")
	if expected <= 0 {
		expected = 1
	}
	count := strings.Count(current, oldStr)
	if count == 0 {
		return "", "", fmt.Errorf("old_string not found in %s", path)
	}
	if count != expected {
		return "", "", fmt.Errorf("expected %d occurrence(s) of old_string in %s, found %d", expected, path, count)
	}
	return current, strings.Replace(current, oldStr, newStr, expected), nil
}

// ModifyContext lets the user edit the proposed file content; the arguments
// are rebuilt as a whole-content replacement.
func (t *ReplaceTool) ModifyContext() *ModifyContext {
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
			_, proposed, err := t.apply(args)
			return proposed, err
		},
		UpdatedParams: func(current, modified string, args map[string]any) map[string]any {
			out := make(map[string]any, len(args))
			for k, v := range args {
				out[k] = v
			}
			out["old_string"] = current
			out["new_string"] = modified
			out["expected_replacements"] = 1
			return out
		},
	}
}
