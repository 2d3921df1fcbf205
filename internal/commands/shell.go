package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
)

// ShellRunner executes shell-mode input directly, bypassing the model. The
// scheduler consults Active before routing "!" input here, so the surface
// can toggle passthrough off without rewiring.
type ShellRunner struct {
	workdir string
	print   func(string)
	logger  *slog.Logger
	active  atomic.Bool
}

// NewShellRunner builds a runner executing in workdir, printing output
// through print. Passthrough starts enabled.
func NewShellRunner(workdir string, print func(string), logger *slog.Logger) *ShellRunner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ShellRunner{workdir: workdir, print: print, logger: logger}
	r.active.Store(true)
	return r
}

// Active reports whether shell passthrough is on.
func (r *ShellRunner) Active() bool {
	return r.active.Load()
}

// SetActive turns shell passthrough on or off.
func (r *ShellRunner) SetActive(on bool) {
	r.active.Store(on)
}

// Run executes one shell line in the working directory and prints its
// combined output. The command's exit error is returned as is.
func (r *ShellRunner) Run(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return fmt.Errorf("empty shell command")
	}
	r.logger.Debug("running shell passthrough", "command", line)

	cmd := exec.CommandContext(ctx, "bash", "-c", line)
	cmd.Dir = r.workdir
	out, err := cmd.CombinedOutput()
	if len(out) > 0 && r.print != nil {
		r.print(strings.TrimRight(string(out), "\n"))
	}
	if err != nil {
		return fmt.Errorf("shell command failed: %w", err)
	}
	return nil
}
