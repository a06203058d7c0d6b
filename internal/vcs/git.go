package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Committer records workspace changes after an agent run finishes.
type Committer interface {
	Commit(ctx context.Context, workspacePath string, message string) error
}

// GitCommitter stages and commits everything under the workspace. A push is
// attempted afterwards when enabled, but a failed push never fails the commit.
type GitCommitter struct {
	runner      CommandRunner
	pushEnabled bool
}

// NewGitCommitter creates a GitCommitter. A nil runner defaults to executing
// git directly.
func NewGitCommitter(runner CommandRunner, pushEnabled bool) *GitCommitter {
	if runner == nil {
		runner = ExecCommandRunner{}
	}
	return &GitCommitter{runner: runner, pushEnabled: pushEnabled}
}

func (g *GitCommitter) Commit(ctx context.Context, workspacePath string, message string) error {
	if !isDir(filepath.Join(workspacePath, ".git")) {
		slog.DebugContext(ctx, "workspace is not a git repository, skipping commit",
			"workspace_path", workspacePath)
		return nil
	}

	if _, err := g.runGit(ctx, workspacePath, "add", "-A"); err != nil {
		return err
	}

	status, err := g.runGit(ctx, workspacePath, "status", "--porcelain")
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(status))) == 0 {
		return nil
	}

	if _, err := g.runGit(ctx, workspacePath, "commit", "-m", message); err != nil {
		return err
	}

	slog.InfoContext(ctx, "workspace changes committed",
		"workspace_path", workspacePath)

	if g.pushEnabled {
		if _, err := g.runGit(ctx, workspacePath, "push"); err != nil {
			// The commit is already recorded locally.
			slog.WarnContext(ctx, "git push failed",
				"workspace_path", workspacePath, "error", err)
		}
	}

	return nil
}

func (g *GitCommitter) runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	output, err := g.runner.Run(ctx, Command{
		Name: "git",
		Args: args,
		Dir:  dir,
		Env:  []string{"GIT_TERMINAL_PROMPT=0"},
	})
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(output))
	}
	return output, nil
}

// NopCommitter discards commit requests. Used when commits are disabled.
type NopCommitter struct{}

func (NopCommitter) Commit(ctx context.Context, workspacePath string, message string) error {
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
