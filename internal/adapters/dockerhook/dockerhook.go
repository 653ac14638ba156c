// Package dockerhook provides a container client adapter using the Docker SDK.
//
// Post-deploy hooks and the in-container maintenance actions run through the
// engine API instead of a `docker exec` command line, so the container name,
// user and argument vector are structured fields rather than shell text.
package dockerhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/mcdonaldj/deployctl/internal/ports"
)

// DockerClient implements ports.ContainerClient using the Docker engine API.
type DockerClient struct {
	cli *client.Client
}

// New creates a new DockerClient using environment defaults (DOCKER_HOST etc).
func New() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerClient{cli: cli}, nil
}

// Exec runs args inside the named container as user, capturing both streams.
func (d *DockerClient) Exec(ctx context.Context, containerName, user, workingDir string, args []string) (ports.CommandResult, error) {
	if len(args) == 0 {
		return ports.CommandResult{}, errors.New("empty command")
	}

	created, err := d.cli.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		User:         user,
		WorkingDir:   workingDir,
		Cmd:          args,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ports.CommandResult{}, fmt.Errorf("container %s not found", containerName)
		}
		return ports.CommandResult{}, fmt.Errorf("creating exec in %s: %w", containerName, err)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ports.CommandResult{}, fmt.Errorf("attaching exec in %s: %w", containerName, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return ports.CommandResult{}, fmt.Errorf("reading exec output from %s: %w", containerName, err)
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ports.CommandResult{}, fmt.Errorf("inspecting exec in %s: %w", containerName, err)
	}

	result := ports.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}
	if inspect.ExitCode != 0 {
		return result, &ports.CommandError{
			Args:     args,
			Dir:      workingDir,
			ExitCode: inspect.ExitCode,
			Stderr:   result.Stderr,
		}
	}
	return result, nil
}

// Close releases resources held by the Docker client.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// Compile-time check that DockerClient implements ports.ContainerClient.
var _ ports.ContainerClient = (*DockerClient)(nil)
