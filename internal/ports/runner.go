// Package ports defines interfaces (contracts) for external dependencies.
// These enable dependency injection and testability via mock implementations.
package ports

import (
	"context"
	"fmt"
	"strings"
)

// Command describes one external process invocation. Args is a plain argument
// vector; nothing is ever passed through a shell. When User is non-empty the
// process runs under that OS account, which requires the caller to hold root.
type Command struct {
	// Args is the argument vector. Args[0] is the binary to execute.
	Args []string

	// Dir is the working directory for the process. Empty means inherit.
	Dir string

	// User is the OS account to run the process as. Empty means current user.
	User string
}

// CommandResult holds the captured outcome of one external invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError is returned by CommandRunner.Run when the process exits
// non-zero. Callers that tolerate non-zero exits (object existence checks)
// detect it with errors.As and inspect the captured result.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// CommandRunner abstracts external process execution for testability.
// Production code uses the execrunner adapter; tests use MockRunner.
type CommandRunner interface {
	// Run executes the command and captures stdout/stderr. A non-zero exit
	// returns the populated CommandResult together with a *CommandError.
	// Errors starting the process (binary missing, unknown user) are
	// returned as-is with a zero result.
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}
