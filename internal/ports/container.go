package ports

import "context"

// ContainerClient abstracts command execution inside a runtime container.
// Production code uses the dockerhook adapter; tests use MockContainerClient.
type ContainerClient interface {
	// Exec runs the argument vector inside the named container as the given
	// user, with workingDir as the process working directory. A non-zero
	// exit returns the populated CommandResult together with a
	// *CommandError, mirroring CommandRunner.Run.
	Exec(ctx context.Context, container, user, workingDir string, args []string) (CommandResult, error)
}
