// Package maintain implements the secondary host actions around a deployed
// project: package updates, process restarts, maintenance mode and tracker
// synchronization. Each action is a thin pass-through over one external
// command, validated before anything runs.
package maintain

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mcdonaldj/deployctl/internal/config"
	"github.com/mcdonaldj/deployctl/internal/logging"
	"github.com/mcdonaldj/deployctl/internal/ports"
)

// Laravel marks maintenance mode with this file under the project path.
const maintenanceMarker = "storage/framework/down"

// Service bundles the maintenance actions over the shared ports.
type Service struct {
	runner     ports.CommandRunner
	containers ports.ContainerClient
	fs         ports.FileSystem
}

// NewService wires a maintenance service from its ports.
func NewService(runner ports.CommandRunner, containers ports.ContainerClient, fs ports.FileSystem) *Service {
	return &Service{runner: runner, containers: containers, fs: fs}
}

// exec runs a command in the project container, failing cleanly when no
// container client is available on this host.
func (s *Service) exec(ctx context.Context, container, user, dir string, args []string) error {
	if s.containers == nil {
		return fmt.Errorf("docker is not available on this host")
	}
	_, err := s.containers.Exec(ctx, container, user, dir, args)
	return err
}

// UpdateComposer runs a composer update inside the project container.
func (s *Service) UpdateComposer(ctx context.Context, p config.ProjectConfig) error {
	if err := p.Require("path", "deploying_user", "container"); err != nil {
		return err
	}
	if p.BlockComposerUpdates {
		return fmt.Errorf("composer updates are blocked for this project")
	}
	if _, err := s.fs.Stat(filepath.Join(p.Path, "composer.json")); err != nil {
		return fmt.Errorf("no composer.json found in %s; not a PHP project", p.Path)
	}

	err := s.exec(ctx, p.Container, p.DeployingUser, p.Path,
		[]string{"composer", "update", "--no-interaction", "--no-dev"})
	if err != nil {
		return fmt.Errorf("composer update failed: %w", err)
	}
	logging.Info("composer packages updated", zap.String("path", p.Path), zap.String("container", p.Container))
	return nil
}

// UpdateNPM runs an npm update in the project path on the host.
func (s *Service) UpdateNPM(ctx context.Context, p config.ProjectConfig) error {
	if err := p.Require("path", "deploying_user"); err != nil {
		return err
	}
	if p.BlockNPMUpdates {
		return fmt.Errorf("npm updates are blocked for this project")
	}
	if _, err := s.fs.Stat(filepath.Join(p.Path, "package.json")); err != nil {
		return fmt.Errorf("no package.json found in %s; not a Node.js project", p.Path)
	}

	if _, err := s.runner.Run(ctx, ports.Command{
		Args: []string{"npm", "update"},
		Dir:  p.Path,
		User: p.DeployingUser,
	}); err != nil {
		return fmt.Errorf("npm update failed: %w", err)
	}
	logging.Info("npm packages updated", zap.String("path", p.Path))
	return nil
}

// RestartSupervisor restarts a supervisord-managed process in the container.
func (s *Service) RestartSupervisor(ctx context.Context, p config.ProjectConfig) error {
	if err := p.Require("container", "supervisor_process"); err != nil {
		return err
	}

	err := s.exec(ctx, p.Container, "", "",
		[]string{"supervisorctl", "restart", p.SupervisorProcess})
	if err != nil {
		return fmt.Errorf("restarting %q in %s: %w", p.SupervisorProcess, p.Container, err)
	}
	logging.Info("supervisor process restarted",
		zap.String("process", p.SupervisorProcess),
		zap.String("container", p.Container))
	return nil
}

// RestartService restarts a systemd unit on the host.
func (s *Service) RestartService(ctx context.Context, p config.ProjectConfig) error {
	if err := p.Require("systemd_service"); err != nil {
		return err
	}

	if _, err := s.runner.Run(ctx, ports.Command{
		Args: []string{"systemctl", "restart", p.SystemdService},
	}); err != nil {
		return fmt.Errorf("restarting %q: %w", p.SystemdService, err)
	}
	logging.Info("service restarted", zap.String("unit", p.SystemdService))
	return nil
}

// ToggleMaintenance flips the project's maintenance mode: down when the site
// is live, up when the maintenance marker is present. Returns the artisan
// subcommand that ran ("down" or "up").
func (s *Service) ToggleMaintenance(ctx context.Context, p config.ProjectConfig) (string, error) {
	if err := p.Require("path", "deploying_user", "container"); err != nil {
		return "", err
	}

	mode := "down"
	if _, err := s.fs.Stat(filepath.Join(p.Path, maintenanceMarker)); err == nil {
		mode = "up"
	}

	err := s.exec(ctx, p.Container, p.DeployingUser, p.Path,
		[]string{"php", "artisan", mode})
	if err != nil {
		return "", fmt.Errorf("toggling maintenance mode (%s): %w", mode, err)
	}
	logging.Info("maintenance mode toggled", zap.String("path", p.Path), zap.String("mode", mode))
	return mode, nil
}

// TrackerSync runs the project's configured tracker synchronization command
// inside the container.
func (s *Service) TrackerSync(ctx context.Context, p config.ProjectConfig) error {
	if err := p.Require("path", "deploying_user", "container", "tracker_sync_command"); err != nil {
		return err
	}

	err := s.exec(ctx, p.Container, p.DeployingUser, p.Path, p.TrackerSyncCommand)
	if err != nil {
		return fmt.Errorf("tracker sync failed: %w", err)
	}
	logging.Info("tracker synchronized", zap.String("path", p.Path), zap.String("container", p.Container))
	return nil
}
