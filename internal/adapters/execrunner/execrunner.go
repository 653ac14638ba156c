// Package execrunner provides a command runner adapter using exec.Command.
package execrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/mcdonaldj/deployctl/internal/ports"
)

// ExecRunner implements ports.CommandRunner using exec.CommandContext.
//
// The User field of a command is honored by resolving the account with
// os/user and setting a process credential, never by prefixing sudo onto a
// shell string. Running as another user therefore requires root.
type ExecRunner struct {
	// timeout bounds every command; zero means no bound.
	timeout time.Duration

	// lookupUser resolves an OS account name. Overridable in tests.
	lookupUser func(name string) (*user.User, error)
}

// Option is a functional option for configuring ExecRunner.
type Option func(*ExecRunner)

// WithTimeout bounds every command run through the adapter, so a hung git or
// package-manager process cannot block the operator indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = d
	}
}

// New creates a new ExecRunner adapter.
func New(opts ...Option) *ExecRunner {
	r := &ExecRunner{lookupUser: user.Lookup}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the command and captures stdout/stderr separately.
func (r *ExecRunner) Run(ctx context.Context, c ports.Command) (ports.CommandResult, error) {
	if len(c.Args) == 0 {
		return ports.CommandResult{}, errors.New("empty command")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir

	if c.User != "" {
		cred, err := r.credentialFor(c.User)
		if err != nil {
			return ports.CommandResult{}, err
		}
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ports.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ports.CommandError{
			Args:     c.Args,
			Dir:      c.Dir,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}

	// Start failure or context cancellation: no exit status to report.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("command %q interrupted: %w", c.Args[0], ctxErr)
	}
	return result, fmt.Errorf("starting command %q: %w", c.Args[0], err)
}

// credentialFor resolves an account name to a process credential.
func (r *ExecRunner) credentialFor(name string) (*syscall.Credential, error) {
	u, err := r.lookupUser(name)
	if err != nil {
		return nil, fmt.Errorf("looking up user %q: %w", name, err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing uid for %q: %w", name, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing gid for %q: %w", name, err)
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}

// Compile-time check that ExecRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*ExecRunner)(nil)
