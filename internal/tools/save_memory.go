package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const memorySectionHeader = "## Added Memories"

// SaveMemoryTool appends a fact to the long-lived memory file. The scheduler
// watches for its successful completion and signals a memory refresh.
type SaveMemoryTool struct {
	BaseTool
	memoryFile string
}

// NewSaveMemoryTool builds the tool writing to the given file path.
func NewSaveMemoryTool(memoryFile string) *SaveMemoryTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fact": map[string]any{
				"type":        "string",
				"description": "The fact to remember across sessions.",
			},
		},
		"required": []any{"fact"},
	}
	return &SaveMemoryTool{
		BaseTool: NewBaseTool("save_memory", "Save Memory",
			"Saves a fact to long-term memory.",
			schema, false, false),
		memoryFile: memoryFile,
	}
}

func (t *SaveMemoryTool) ValidateParams(args map[string]any) error {
	if err := t.BaseTool.ValidateParams(args); err != nil {
		return err
	}
	fact, err := StringArg(args, "fact")
	if err != nil {
		return err
	}
	if strings.TrimSpace(fact) == "" {
		return fmt.Errorf("fact must not be empty")
	}
	return nil
}

func (t *SaveMemoryTool) Describe(args map[string]any) string {
	fact, _ := StringArg(args, "fact")
	return fmt.Sprintf("Remember: %s", fact)
}

func (t *SaveMemoryTool) Execute(ctx context.Context, args map[string]any, _ func(string)) (*Result, error) {
	fact, err := StringArg(args, "fact")
	if err != nil {
		return nil, err
	}
	fact = strings.TrimSpace(fact)

	if err := appendMemory(t.memoryFile, fact); err != nil {
		return nil, err
	}
	return TextResult(fmt.Sprintf("Okay, I've remembered that: %q", fact)), nil
}

// appendMemory adds the fact as a bullet under the memory section, creating
// the file or the section when missing.
func appendMemory(path, fact string) error {
	content, err := readIfExists(path)
	if err != nil {
		return err
	}

	entry := "- " + fact
	idx := strings.Index(content, memorySectionHeader)
	if idx < 0 {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		if content != "" {
			content += "\n"
		}
		content += memorySectionHeader + "\n" + entry + "\n"
	} else {
		sectionEnd := len(content)
		if next := strings.Index(content[idx+len(memorySectionHeader):], "\n## "); next >= 0 {
			sectionEnd = idx + len(memorySectionHeader) + next + 1
		}
		section := strings.TrimRight(content[idx:sectionEnd], "\n")
		content = content[:idx] + section + "\n" + entry + "\n" + content[sectionEnd:]
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating memory directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing memory file: %w", err)
	}
	return nil
}
