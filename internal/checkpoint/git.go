// Package checkpoint snapshots the project and the conversation before a
// restorable file edit is approved. Snapshots pair a commit in a shadow git
// repository with a JSON sidecar capturing the conversation and the pending
// call, so /restore can rewind both the working tree and the session.
package checkpoint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const shadowGitConfig = "[user]\n  name = Drover\n  email = drover@localhost\n[commit]\n  gpgsign = false\n"

// GitService manages a shadow git repository whose work tree is the project
// root but whose .git directory lives elsewhere, so snapshots never touch the
// user's own git state.
type GitService struct {
	projectRoot string
	shadowDir   string
	logger      *slog.Logger
}

// NewGitService builds a service rooted at projectRoot with its shadow
// repository under shadowDir.
func NewGitService(projectRoot, shadowDir string, logger *slog.Logger) *GitService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitService{projectRoot: projectRoot, shadowDir: shadowDir, logger: logger}
}

// Init verifies git is available and sets up the shadow repository. Safe to
// call more than once.
func (g *GitService) Init(ctx context.Context) error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("checkpointing requires git in PATH: %w", err)
	}
	if err := os.MkdirAll(g.shadowDir, 0o755); err != nil {
		return err
	}

	// A private gitconfig keeps the shadow repo independent of the user's
	// identity and signing setup. HOME is pointed here when git runs.
	configPath := filepath.Join(g.shadowDir, ".gitconfig")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(shadowGitConfig), 0o644); err != nil {
			return err
		}
	}

	gitDir := filepath.Join(g.shadowDir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		if _, err := g.run(ctx, "init", "-b", "main"); err != nil {
			return fmt.Errorf("init shadow repository: %w", err)
		}
		if _, err := g.run(ctx, "commit", "--allow-empty", "-m", "Initial commit"); err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
	}

	// Honor the project's ignore rules so snapshots skip what the user
	// already excludes.
	userIgnore := filepath.Join(g.projectRoot, ".gitignore")
	shadowIgnore := filepath.Join(g.shadowDir, ".gitignore")
	if _, err := os.Stat(shadowIgnore); os.IsNotExist(err) {
		if err := copyFile(userIgnore, shadowIgnore); err != nil && !os.IsNotExist(err) {
			g.logger.Warn("could not copy project gitignore into shadow repo", "error", err)
		}
	}
	return nil
}

// Snapshot stages the full work tree and commits it, returning the commit
// hash. An unchanged tree still produces a commit so every checkpoint has a
// distinct hash.
func (g *GitService) Snapshot(ctx context.Context, message string) (string, error) {
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return "", fmt.Errorf("stage snapshot: %w", err)
	}
	if _, err := g.run(ctx, "commit", "--allow-empty", "-m", message); err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}
	return g.Head(ctx)
}

// Head returns the shadow repository's current commit hash.
func (g *GitService) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Restore rewinds the project work tree to the given snapshot and removes
// files created since.
func (g *GitService) Restore(ctx context.Context, commitHash string) error {
	if _, err := g.run(ctx, "restore", "--source", commitHash, "."); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", commitHash, err)
	}
	if _, err := g.run(ctx, "clean", "-fd"); err != nil {
		return fmt.Errorf("clean work tree: %w", err)
	}
	return nil
}

// run executes git against the shadow repository with the project root as the
// work tree.
func (g *GitService) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.projectRoot
	cmd.Env = append(os.Environ(),
		"GIT_DIR="+filepath.Join(g.shadowDir, ".git"),
		"GIT_WORK_TREE="+g.projectRoot,
		"HOME="+g.shadowDir,
		"XDG_CONFIG_HOME="+g.shadowDir,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
