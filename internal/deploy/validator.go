package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcdonaldj/deployctl/internal/ports"
)

// Validator runs the read-only preconditions that must hold before any
// mutating git command: the target branch exists on the remote and the
// working tree is clean. Both checks run after the fetch, so branch existence
// reflects the latest remote state.
type Validator struct {
	runner ports.CommandRunner
}

// NewValidator creates a validator over the given command runner.
func NewValidator(runner ports.CommandRunner) *Validator {
	return &Validator{runner: runner}
}

// CheckBranch verifies that origin/<branch> is present among the remote refs.
func (v *Validator) CheckBranch(ctx context.Context, path, user, branch string) error {
	res, err := v.runner.Run(ctx, ports.Command{
		Args: []string{"git", "branch", "-r"},
		Dir:  path,
		User: user,
	})
	if err != nil {
		return fmt.Errorf("listing remote branches: %w", err)
	}

	want := "origin/" + branch
	for _, line := range strings.Split(res.Stdout, "\n") {
		// Lines look like "  origin/main" or "  origin/HEAD -> origin/main".
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == want {
			return nil
		}
	}
	return &ValidationError{Reason: BranchNotFound, Branch: branch}
}

// CheckClean verifies the working tree has no uncommitted changes. Without
// this check the subsequent hard reset would silently discard operator edits.
func (v *Validator) CheckClean(ctx context.Context, path, user string) error {
	res, err := v.runner.Run(ctx, ports.Command{
		Args: []string{"git", "status", "--porcelain"},
		Dir:  path,
		User: user,
	})
	if err != nil {
		return fmt.Errorf("checking working tree status: %w", err)
	}
	if strings.TrimSpace(res.Stdout) != "" {
		return &ValidationError{Reason: DirtyWorkingTree}
	}
	return nil
}
