package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Editor launches an external editor on proposed content and returns the
// edited result. Used by the modify-in-editor approval flow.
type Editor struct {
	// Command is the editor binary, e.g. "vim" or "code --wait". Falls
	// back to $EDITOR, then to "vi".
	Command string
}

// Edit writes currentContent and proposedContent to a temporary old/new file
// pair, opens the editor on the new file, waits for it to exit, and returns
// the file's post-edit content. The old file sits next to it so diff-capable
// editors can show both.
func (e *Editor) Edit(ctx context.Context, fileName, currentContent, proposedContent string) (string, error) {
	dir, err := os.MkdirTemp("", "drover-edit-")
	if err != nil {
		return "", fmt.Errorf("creating edit workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	base := filepath.Base(fileName)
	oldPath := filepath.Join(dir, "old-"+base)
	newPath := filepath.Join(dir, "new-"+base)
	if err := os.WriteFile(oldPath, []byte(currentContent), 0o600); err != nil {
		return "", fmt.Errorf("writing current content: %w", err)
	}
	if err := os.WriteFile(newPath, []byte(proposedContent), 0o600); err != nil {
		return "", fmt.Errorf("writing proposed content: %w", err)
	}

	name, args := e.command()
	args = append(args, newPath)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s: %w", name, err)
	}

	edited, err := os.ReadFile(newPath)
	if err != nil {
		return "", fmt.Errorf("reading edited content: %w", err)
	}
	return string(edited), nil
}

// command splits the configured editor into binary and flags. Quoting is not
// supported; editor commands in practice are a binary plus simple flags.
func (e *Editor) command() (string, []string) {
	cmd := e.Command
	if cmd == "" {
		cmd = os.Getenv("EDITOR")
	}
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		fields = []string{"vi"}
	}
	return fields[0], fields[1:]
}
