package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ShellTool runs a shell command with live output streaming. Every
// invocation is gated behind an exec confirmation; the approval layer can
// remember per-root-command allowances.
type ShellTool struct {
	BaseTool
	workdir string
}

func NewShellTool(workdir string) *ShellTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Short human description of what the command does.",
			},
			"directory": map[string]any{
				"type":        "string",
				"description": "Working directory relative to the project root.",
			},
		},
		"required": []any{"command"},
	}
	return &ShellTool{
		BaseTool: NewBaseTool("run_shell_command", "Shell",
			"Executes a shell command and returns its combined output.",
			schema, true, true),
		workdir: workdir,
	}
}

func (t *ShellTool) ValidateParams(args map[string]any) error {
	if err := t.BaseTool.ValidateParams(args); err != nil {
		return err
	}
	cmd, err := StringArg(args, "command")
	if err != nil {
		return err
	}
	if strings.TrimSpace(cmd) == "" {
		return fmt.Errorf("command must not be empty")
	}
	return nil
}

func (t *ShellTool) Describe(args map[string]any) string {
	cmd, _ := StringArg(args, "command")
	if desc, ok := args["description"].(string); ok && desc != "" {
		return fmt.Sprintf("%s (%s)", cmd, desc)
	}
	return cmd
}

func (t *ShellTool) ShouldConfirm(ctx context.Context, args map[string]any) (*Confirmation, error) {
	cmd, err := StringArg(args, "command")
	if err != nil {
		return nil, err
	}
	return &Confirmation{
		Kind:        ConfirmExec,
		Title:       "Confirm shell command",
		Command:     cmd,
		RootCommand: RootCommand(cmd),
	}, nil
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]any, onLiveOutput func(string)) (*Result, error) {
	command, err := StringArg(args, "command")
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	if dir, ok := args["directory"].(string); ok && dir != "" {
		cmd.Dir = filepath.Join(t.workdir, dir)
	} else if t.workdir != "" {
		cmd.Dir = t.workdir
	}

	var buf bytes.Buffer
	sink := &liveWriter{buf: &buf, onChunk: onLiveOutput}
	cmd.Stdout = sink
	cmd.Stderr = sink

	runErr := cmd.Run()
	output := buf.String()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		return nil, fmt.Errorf("command failed: %w\n%s", runErr, output)
	}
	if output == "" {
		output = "(no output)"
	}
	return TextResult(output), nil
}

// liveWriter accumulates output and forwards the running total to the live
// output callback, matching the "latest chunk wins" display contract.
type liveWriter struct {
	mu      sync.Mutex
	buf     *bytes.Buffer
	onChunk func(string)
}

func (w *liveWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if w.onChunk != nil {
		w.onChunk(w.buf.String())
	}
	return n, err
}

// RootCommand extracts the leading binary name from a shell command line.
// Used as the key for per-command approval memory.
func RootCommand(command string) string {
	fields := strings.Fields(command)
	for _, f := range fields {
		// Skip env assignments like FOO=bar.
		if strings.Contains(f, "=") && !strings.HasPrefix(f, "=") {
			continue
		}
		if f == "sudo" {
			continue
		}
		if i := strings.LastIndex(f, "/"); i >= 0 {
			f = f[i+1:]
		}
		return f
	}
	return command
}
