// Package deploy implements the deployment state machine: preconditions,
// the ordered git mutation sequence, and the revision bookkeeping that makes
// the transition reversible.
package deploy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mcdonaldj/deployctl/internal/config"
	"github.com/mcdonaldj/deployctl/internal/logging"
	"github.com/mcdonaldj/deployctl/internal/ports"
	"github.com/mcdonaldj/deployctl/internal/retry"
)

// Result summarizes one completed deploy. HookErr and OwnershipErr are
// tolerated failures: they are reported but do not fail the deploy.
type Result struct {
	Branch           string
	PreDeployCommit  string
	PostDeployCommit string
	HookRan          bool
	HookErr          error
	OwnershipFixed   bool
	OwnershipErr     error
}

// Executor drives a deploy end to end. All external effects go through the
// injected ports, so the full state machine is testable without git, docker
// or a real filesystem.
type Executor struct {
	runner     ports.CommandRunner
	containers ports.ContainerClient
	fs         ports.FileSystem
	locker     ports.Locker
	revisions  *RevisionStore
	validator  *Validator
	fetcher    *Fetcher

	// hookTimeout bounds the in-container migration command.
	hookTimeout time.Duration
}

// Option is a functional option for configuring an Executor.
type Option func(*Executor)

// WithFetchPolicy overrides the fetch retry policy.
func WithFetchPolicy(policy retry.Policy) Option {
	return func(e *Executor) {
		e.fetcher = NewFetcherWithPolicy(e.runner, policy)
	}
}

// NewExecutor wires an executor from its ports. hookTimeout bounds the
// post-deploy migration hook; host commands are bounded by the runner itself.
func NewExecutor(runner ports.CommandRunner, containers ports.ContainerClient, fs ports.FileSystem, locker ports.Locker, hookTimeout time.Duration, opts ...Option) *Executor {
	e := &Executor{
		runner:      runner,
		containers:  containers,
		fs:          fs,
		locker:      locker,
		revisions:   NewRevisionStore(fs),
		validator:   NewValidator(runner),
		fetcher:     NewFetcher(runner),
		hookTimeout: hookTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Revisions exposes the executor's revision store.
func (e *Executor) Revisions() *RevisionStore { return e.revisions }

// Deploy moves the working tree to the tip of origin/<branch>, recording the
// pre-deploy commit first so the transition can be reversed. The sequence is
// strictly ordered; any fatal failure aborts the remainder and the repository
// keeps the state of the last completed step.
func (e *Executor) Deploy(ctx context.Context, p config.ProjectConfig) (*Result, error) {
	if err := p.Require("path", "branch", "deploying_user"); err != nil {
		return nil, err
	}
	if info, err := e.fs.Stat(filepath.Join(p.Path, ".git")); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a git working tree", p.Path)
	}

	release, err := e.locker.Acquire(p.Path)
	if err != nil {
		return nil, err
	}
	defer release()

	logging.Info("deploy started", zap.String("path", p.Path), zap.String("branch", p.Branch))

	// 1. Refresh remote refs so the branch check sees current remote state.
	if err := e.fetcher.FetchAll(ctx, p.Path, p.DeployingUser); err != nil {
		logging.Error("fetch failed", zap.String("path", p.Path), zap.Error(err))
		return nil, err
	}

	// 2. Capture the rollback point. Fatal on failure: without it no revert
	// is possible later.
	pre, err := e.head(ctx, p)
	if err != nil {
		return nil, &ExecutionError{Phase: PhaseCaptureRevision, Err: err}
	}

	// 3. Persist the record before anything mutates.
	if err := e.revisions.Save(p.Path, pre); err != nil {
		return nil, &ExecutionError{Phase: PhaseCaptureRevision, Err: err}
	}
	logging.Info("revision recorded", zap.String("path", p.Path), zap.String("commit", pre))

	// 4. Preconditions, in order: branch exists remotely, tree is clean.
	if err := e.validator.CheckBranch(ctx, p.Path, p.DeployingUser, p.Branch); err != nil {
		return nil, err
	}
	if err := e.validator.CheckClean(ctx, p.Path, p.DeployingUser); err != nil {
		return nil, err
	}

	// 5. The mutation sequence. Hard reset targets the remote ref, never a
	// local one: deploy always converges to remote truth, discarding any
	// diverged local commits.
	steps := [][]string{
		{"git", "fetch", "--all"},
		{"git", "checkout", p.Branch},
		{"git", "reset", "--hard", "origin/" + p.Branch},
		{"git", "submodule", "update", "--init", "--recursive"},
	}
	for _, args := range steps {
		if _, err := e.runner.Run(ctx, ports.Command{Args: args, Dir: p.Path, User: p.DeployingUser}); err != nil {
			logging.Error("mutation step failed",
				zap.String("path", p.Path),
				zap.Strings("command", args),
				zap.Error(err))
			return nil, &ExecutionError{Phase: PhaseMutate, Err: err}
		}
	}

	result := &Result{Branch: p.Branch, PreDeployCommit: pre}

	// 6. Optional migration hook. Schema migration failure after a
	// successful checkout is independently retriable, so it is a warning,
	// not a deploy failure.
	if p.Container != "" {
		result.HookRan = true
		result.HookErr = e.runMigrations(ctx, p)
		if result.HookErr != nil {
			logging.Warn("migration hook failed",
				zap.String("container", p.Container),
				zap.Error(result.HookErr))
		}
	}

	// 7. Ownership normalization of the local data file, skipped when absent.
	if _, err := e.fs.Stat(p.DataFilePath()); err == nil {
		if _, err := e.runner.Run(ctx, ports.Command{
			Args: []string{"chown", p.Owner(), p.DataFilePath()},
		}); err != nil {
			result.OwnershipErr = err
			logging.Warn("ownership fix failed", zap.String("file", p.DataFilePath()), zap.Error(err))
		} else {
			result.OwnershipFixed = true
		}
	}

	// 8. Report the deployed commit as the success signal.
	post, err := e.head(ctx, p)
	if err != nil {
		return nil, &ExecutionError{Phase: PhaseFinalize, Err: err}
	}
	result.PostDeployCommit = post

	logging.Info("deploy finished",
		zap.String("path", p.Path),
		zap.String("branch", p.Branch),
		zap.String("commit", post))
	return result, nil
}

// head returns the full HEAD commit hash of the project working tree.
func (e *Executor) head(ctx context.Context, p config.ProjectConfig) (string, error) {
	res, err := e.runner.Run(ctx, ports.Command{
		Args: []string{"git", "rev-parse", "HEAD"},
		Dir:  p.Path,
		User: p.DeployingUser,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (e *Executor) runMigrations(ctx context.Context, p config.ProjectConfig) error {
	if e.containers == nil {
		return fmt.Errorf("no container client configured")
	}
	if e.hookTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.hookTimeout)
		defer cancel()
	}
	_, err := e.containers.Exec(ctx, p.Container, p.DeployingUser, p.Path,
		[]string{"php", "artisan", "migrate", "--force"})
	return err
}
