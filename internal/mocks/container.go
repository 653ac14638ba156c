package mocks

import (
	"context"
	"strings"

	"github.com/mcdonaldj/deployctl/internal/ports"
)

// ContainerExecCall records one Exec invocation on the mock container client.
type ContainerExecCall struct {
	Container  string
	User       string
	WorkingDir string
	Args       []string
}

// MockContainerClient implements ports.ContainerClient for testing.
type MockContainerClient struct {
	// Calls records every exec in invocation order.
	Calls []ContainerExecCall
	// Results maps joined argv to canned outcomes; unscripted execs succeed.
	Results map[string]CannedResult
}

// NewMockContainerClient creates a new mock container client.
func NewMockContainerClient() *MockContainerClient {
	return &MockContainerClient{Results: make(map[string]CannedResult)}
}

// Exec records the call and returns the canned result, if any.
func (m *MockContainerClient) Exec(ctx context.Context, container, user, workingDir string, args []string) (ports.CommandResult, error) {
	m.Calls = append(m.Calls, ContainerExecCall{
		Container:  container,
		User:       user,
		WorkingDir: workingDir,
		Args:       args,
	})
	if err := ctx.Err(); err != nil {
		return ports.CommandResult{}, err
	}
	if canned, ok := m.Results[strings.Join(args, " ")]; ok {
		return canned.Result, canned.Err
	}
	return ports.CommandResult{}, nil
}

// Fail scripts a non-zero exit for the given in-container argv.
func (m *MockContainerClient) Fail(argv string, exitCode int, stderr string) {
	m.Results[argv] = CannedResult{
		Result: ports.CommandResult{Stderr: stderr, ExitCode: exitCode},
		Err:    &ports.CommandError{Args: strings.Fields(argv), ExitCode: exitCode, Stderr: stderr},
	}
}

// Compile-time check that MockContainerClient implements ports.ContainerClient.
var _ ports.ContainerClient = (*MockContainerClient)(nil)
