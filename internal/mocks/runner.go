// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"strings"

	"github.com/mcdonaldj/deployctl/internal/ports"
)

// CannedResult is the scripted outcome for one command.
type CannedResult struct {
	Result ports.CommandResult
	Err    error
}

// MockRunner implements ports.CommandRunner for testing. Results are keyed by
// the space-joined argument vector and consumed as a queue: repeated
// invocations of the same command pop successive results, and the last one
// sticks. Unscripted commands succeed with empty output. Every call is
// recorded in order.
type MockRunner struct {
	// Calls records every command in invocation order.
	Calls []ports.Command
	// Results maps joined argv ("git fetch --all") to queued outcomes.
	Results map[string][]CannedResult
}

// NewMockRunner creates a new mock runner with no scripted results.
func NewMockRunner() *MockRunner {
	return &MockRunner{Results: make(map[string][]CannedResult)}
}

// Run records the call and returns the next canned result, if any.
func (m *MockRunner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	m.Calls = append(m.Calls, cmd)
	if err := ctx.Err(); err != nil {
		return ports.CommandResult{}, err
	}
	key := strings.Join(cmd.Args, " ")
	queue := m.Results[key]
	if len(queue) == 0 {
		return ports.CommandResult{}, nil
	}
	canned := queue[0]
	if len(queue) > 1 {
		m.Results[key] = queue[1:]
	}
	return canned.Result, canned.Err
}

// Respond queues a successful result with the given stdout.
func (m *MockRunner) Respond(argv, stdout string) {
	m.Results[argv] = append(m.Results[argv], CannedResult{
		Result: ports.CommandResult{Stdout: stdout},
	})
}

// Fail queues a non-zero exit with the given code and stderr, mirroring what
// the exec adapter produces.
func (m *MockRunner) Fail(argv string, exitCode int, stderr string) {
	m.Results[argv] = append(m.Results[argv], CannedResult{
		Result: ports.CommandResult{Stderr: stderr, ExitCode: exitCode},
		Err:    &ports.CommandError{Args: strings.Fields(argv), ExitCode: exitCode, Stderr: stderr},
	})
}

// CommandLines returns every recorded call as a joined argv string.
func (m *MockRunner) CommandLines() []string {
	lines := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		lines[i] = strings.Join(c.Args, " ")
	}
	return lines
}

// Compile-time check that MockRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*MockRunner)(nil)
