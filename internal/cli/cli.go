// Package cli provides the command-line interface with injectable io.Writer
// and services for testing.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/mcdonaldj/deployctl/internal/adapters/dockerhook"
	"github.com/mcdonaldj/deployctl/internal/adapters/execrunner"
	"github.com/mcdonaldj/deployctl/internal/adapters/flock"
	"github.com/mcdonaldj/deployctl/internal/adapters/osfs"
	"github.com/mcdonaldj/deployctl/internal/config"
	"github.com/mcdonaldj/deployctl/internal/deploy"
	"github.com/mcdonaldj/deployctl/internal/logging"
	"github.com/mcdonaldj/deployctl/internal/maintain"
	"github.com/mcdonaldj/deployctl/internal/ports"
	"github.com/mcdonaldj/deployctl/internal/revert"
)

// ConfigService loads the configuration file for the CLI.
type ConfigService interface {
	Load(path string) (*config.Config, error)
}

// DeployService performs deployments for the CLI.
type DeployService interface {
	Deploy(ctx context.Context, p config.ProjectConfig) (*deploy.Result, error)
}

// RevertService performs reversions for the CLI.
type RevertService interface {
	Revert(ctx context.Context, p config.ProjectConfig) (string, error)
}

// MaintenanceService performs the secondary actions for the CLI.
type MaintenanceService interface {
	UpdateComposer(ctx context.Context, p config.ProjectConfig) error
	UpdateNPM(ctx context.Context, p config.ProjectConfig) error
	RestartSupervisor(ctx context.Context, p config.ProjectConfig) error
	RestartService(ctx context.Context, p config.ProjectConfig) error
	ToggleMaintenance(ctx context.Context, p config.ProjectConfig) (string, error)
	TrackerSync(ctx context.Context, p config.ProjectConfig) error
}

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error
	Version string    // Application version
	Args    []string  // Command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit).
	Exit func(code int)

	// Geteuid for the fail-fast privilege check (defaults to os.Geteuid).
	Geteuid func() int

	// Injectable dependencies (nil means build production defaults).
	ConfigSvc   ConfigService
	DeploySvc   DeployService
	RevertSvc   RevertService
	MaintainSvc MaintenanceService

	// Color functions (plain Sprint in tests).
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Version: version,
		Args:    os.Args,
		Exit:    os.Exit,
		Geteuid: os.Geteuid,
		green:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured
// output, fake root).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return &CLI{
		Out:     out,
		Err:     errOut,
		Version: "test",
		Args:    args,
		Exit:    func(code int) {},
		Geteuid: func() int { return 0 },
		green:   noColor,
		yellow:  noColor,
		cyan:    noColor,
		red:     noColor,
	}
}

// defaultConfigService wraps the config package functions.
type defaultConfigService struct{}

func (d *defaultConfigService) Load(path string) (*config.Config, error) {
	return config.Load(path)
}

func (c *CLI) configSvc() ConfigService {
	if c.ConfigSvc != nil {
		return c.ConfigSvc
	}
	return &defaultConfigService{}
}

// buildServices wires the production adapters for one invocation. The docker
// client is optional: actions that never touch a container still work on a
// host without a reachable docker daemon.
func (c *CLI) buildServices(cfg *config.Config) (DeployService, RevertService, MaintenanceService) {
	runner := execrunner.New(execrunner.WithTimeout(cfg.Timeout()))
	fs := osfs.New()
	locker := flock.New()

	var containers ports.ContainerClient
	if docker, err := dockerhook.New(); err == nil {
		containers = docker
	} else {
		logging.Warn("docker client unavailable; container actions will fail", zap.Error(err))
	}

	deploySvc := c.DeploySvc
	if deploySvc == nil {
		deploySvc = deploy.NewExecutor(runner, containers, fs, locker, cfg.Timeout())
	}
	revertSvc := c.RevertSvc
	if revertSvc == nil {
		revertSvc = revert.NewReverter(runner, fs, locker)
	}
	maintainSvc := c.MaintainSvc
	if maintainSvc == nil {
		maintainSvc = maintain.NewService(runner, containers, fs)
	}
	return deploySvc, revertSvc, maintainSvc
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run(ctx context.Context) {
	if len(c.Args) >= 2 {
		switch c.Args[1] {
		case "version", "-v", "--version":
			fmt.Fprintf(c.Out, "deployctl v%s\n", c.Version)
			return
		case "help", "-h", "--help":
			c.PrintUsage()
			return
		}
	}

	if len(c.Args) < 3 {
		fmt.Fprintln(c.Err, "Usage: deployctl <project-key> <action> [--config=path]")
		c.PrintUsage()
		c.Exit(1)
		return
	}

	// Every action runs commands as other users; refuse early with a clear
	// message rather than failing mid-sequence.
	if c.Geteuid() != 0 {
		fmt.Fprintln(c.Err, "deployctl must be run as root")
		c.Exit(1)
		return
	}

	projectKey := c.Args[1]
	action := c.Args[2]
	configPath := ""
	for _, arg := range c.Args[3:] {
		if strings.HasPrefix(arg, "--config=") {
			configPath = strings.TrimPrefix(arg, "--config=")
		}
	}

	cfg, err := c.configSvc().Load(configPath)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	if err := logging.Init(cfg.LogFile); err != nil {
		fmt.Fprintf(c.Err, "Error opening log file: %v\n", err)
		c.Exit(1)
		return
	}
	defer logging.Sync()

	project, err := cfg.Project(projectKey)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	deploySvc, revertSvc, maintainSvc := c.buildServices(cfg)

	switch action {
	case "deploy":
		c.runDeploy(ctx, deploySvc, project)
	case "revert-deployment":
		c.runRevert(ctx, revertSvc, project)
	case "update-php":
		c.runSimple(maintainSvc.UpdateComposer, ctx, project, "PHP package update successful")
	case "update-npm":
		c.runSimple(maintainSvc.UpdateNPM, ctx, project, "Node.js package update successful")
	case "restart-supervisor":
		c.runSimple(maintainSvc.RestartSupervisor, ctx, project,
			fmt.Sprintf("Restarted %q in %q", project.SupervisorProcess, project.Container))
	case "restart-service":
		c.runSimple(maintainSvc.RestartService, ctx, project,
			fmt.Sprintf("Restarted %q", project.SystemdService))
	case "toggle-maintenance":
		c.runToggle(ctx, maintainSvc, project)
	case "tracker-sync":
		c.runSimple(maintainSvc.TrackerSync, ctx, project, "Tracker synchronized")
	default:
		fmt.Fprintf(c.Err, "Unknown action: %s\n", action)
		c.PrintUsage()
		c.Exit(1)
	}
}

// PrintUsage prints the help message.
func (c *CLI) PrintUsage() {
	fmt.Fprintln(c.Out, `deployctl - Git deployment manager

Usage:
  deployctl <project-key> <action> [--config=path]

Actions:
  deploy                 Deploy the configured branch to the project path
  revert-deployment      Reset the working tree to the last recorded revision
  update-php             Update composer packages inside the project container
  update-npm             Update npm packages in the project path
  restart-supervisor     Restart the supervisord process inside the container
  restart-service        Restart the systemd unit
  toggle-maintenance     Toggle the project's maintenance mode
  tracker-sync           Run the configured tracker synchronization command

  deployctl version, -v  Show version
  deployctl help, -h     Show this help

Config: ` + config.DefaultPath)
}

func (c *CLI) runDeploy(ctx context.Context, svc DeployService, p config.ProjectConfig) {
	fmt.Fprintf(c.Out, "%s Deploying %s to %s\n", c.cyan("=>"), p.Branch, p.Path)

	result, err := svc.Deploy(ctx, p)
	if err != nil {
		fmt.Fprintf(c.Err, "%s Deployment failed: %v\n", c.red("x"), err)
		c.Exit(1)
		return
	}

	fmt.Fprintf(c.Out, "  %s Commit %s stored as last revision\n", c.green("*"), result.PreDeployCommit)
	if result.HookRan {
		if result.HookErr != nil {
			fmt.Fprintf(c.Out, "  %s Database migrations failed: %v\n", c.yellow("!"), result.HookErr)
		} else {
			fmt.Fprintf(c.Out, "  %s Database migrations completed\n", c.green("*"))
		}
	}
	if result.OwnershipErr != nil {
		fmt.Fprintf(c.Out, "  %s Ownership fix failed: %v\n", c.yellow("!"), result.OwnershipErr)
	}
	fmt.Fprintf(c.Out, "%s Branch %s at %s deployed to %s\n",
		c.green("*"), result.Branch, result.PostDeployCommit, p.Path)
}

func (c *CLI) runRevert(ctx context.Context, svc RevertService, p config.ProjectConfig) {
	fmt.Fprintf(c.Out, "%s Reverting %s to the last recorded revision\n", c.cyan("=>"), p.Path)

	commit, err := svc.Revert(ctx, p)
	if err != nil {
		fmt.Fprintf(c.Err, "%s Reversion failed: %v\n", c.red("x"), err)
		c.Exit(1)
		return
	}
	fmt.Fprintf(c.Out, "%s Reverted to commit %s\n", c.green("*"), commit)
}

func (c *CLI) runToggle(ctx context.Context, svc MaintenanceService, p config.ProjectConfig) {
	mode, err := svc.ToggleMaintenance(ctx, p)
	if err != nil {
		fmt.Fprintf(c.Err, "%s %v\n", c.red("x"), err)
		c.Exit(1)
		return
	}
	if mode == "down" {
		fmt.Fprintf(c.Out, "%s Maintenance mode enabled\n", c.yellow("!"))
	} else {
		fmt.Fprintf(c.Out, "%s Maintenance mode disabled\n", c.green("*"))
	}
}

// runSimple executes a pass-through action and prints a single-line verdict.
func (c *CLI) runSimple(fn func(context.Context, config.ProjectConfig) error, ctx context.Context, p config.ProjectConfig, success string) {
	if err := fn(ctx, p); err != nil {
		fmt.Fprintf(c.Err, "%s %v\n", c.red("x"), err)
		c.Exit(1)
		return
	}
	fmt.Fprintf(c.Out, "%s %s\n", c.green("*"), success)
}
