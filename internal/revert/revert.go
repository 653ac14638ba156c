// Package revert resets a project working tree to the commit recorded by the
// last deploy.
package revert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mcdonaldj/deployctl/internal/config"
	"github.com/mcdonaldj/deployctl/internal/deploy"
	"github.com/mcdonaldj/deployctl/internal/logging"
	"github.com/mcdonaldj/deployctl/internal/ports"
)

// Reason identifies why a revert failed.
type Reason string

const (
	// NoRecord means no LAST_REVISION file exists (or it is empty).
	NoRecord Reason = "no revision record"
	// UnknownCommit means the recorded hash is not an object in the
	// repository, so resetting to it is impossible.
	UnknownCommit Reason = "unknown commit"
	// ExecutionFailed means the hard reset itself failed.
	ExecutionFailed Reason = "reset failed"
)

// RevertError reports a failed revert. A revert never partially succeeds
// silently: either the tree reaches the recorded commit or this error names
// exactly what stopped it.
type RevertError struct {
	Reason Reason
	Commit string
	Err    error
}

func (e *RevertError) Error() string {
	switch e.Reason {
	case NoRecord:
		return fmt.Sprintf("no revision record found; nothing to revert to (%v)", e.Err)
	case UnknownCommit:
		return fmt.Sprintf("recorded commit %s does not exist in the repository", e.Commit)
	case ExecutionFailed:
		return fmt.Sprintf("reverting to commit %s failed: %v", e.Commit, e.Err)
	default:
		return string(e.Reason)
	}
}

func (e *RevertError) Unwrap() error { return e.Err }

// Reverter resets a working tree to the recorded pre-deploy commit. It is a
// separate entry point from the deployer and depends only on the revision
// store and the command runner. A revert is an emergency action: it runs
// exactly once, with no retry, and fails loudly.
type Reverter struct {
	runner    ports.CommandRunner
	locker    ports.Locker
	revisions *deploy.RevisionStore
}

// NewReverter wires a reverter from its ports.
func NewReverter(runner ports.CommandRunner, fs ports.FileSystem, locker ports.Locker) *Reverter {
	return &Reverter{
		runner:    runner,
		locker:    locker,
		revisions: deploy.NewRevisionStore(fs),
	}
}

// Revert resets the working tree to the recorded commit and returns it.
// The record is left in place, so a second revert before the next deploy
// resets to the same commit.
func (r *Reverter) Revert(ctx context.Context, p config.ProjectConfig) (string, error) {
	if err := p.Require("path", "deploying_user"); err != nil {
		return "", err
	}

	release, err := r.locker.Acquire(p.Path)
	if err != nil {
		return "", err
	}
	defer release()

	commit, err := r.revisions.Load(p.Path)
	if err != nil {
		return "", &RevertError{Reason: NoRecord, Err: err}
	}

	// The recorded hash must name an object before any mutation is
	// attempted; a corrupt or foreign record must not trigger a reset.
	if _, err := r.runner.Run(ctx, ports.Command{
		Args: []string{"git", "cat-file", "-t", commit},
		Dir:  p.Path,
		User: p.DeployingUser,
	}); err != nil {
		var cmdErr *ports.CommandError
		if errors.As(err, &cmdErr) {
			return "", &RevertError{Reason: UnknownCommit, Commit: commit, Err: err}
		}
		return "", &RevertError{Reason: ExecutionFailed, Commit: commit, Err: err}
	}

	if _, err := r.runner.Run(ctx, ports.Command{
		Args: []string{"git", "reset", "--hard", commit},
		Dir:  p.Path,
		User: p.DeployingUser,
	}); err != nil {
		logging.Error("revert failed", zap.String("path", p.Path), zap.String("commit", commit), zap.Error(err))
		return "", &RevertError{Reason: ExecutionFailed, Commit: commit, Err: err}
	}

	logging.Info("revert finished", zap.String("path", p.Path), zap.String("commit", commit))
	return commit, nil
}
