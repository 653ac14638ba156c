package maintain

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mcdonaldj/deployctl/internal/config"
	"github.com/mcdonaldj/deployctl/internal/mocks"
)

type serviceFixture struct {
	runner     *mocks.MockRunner
	containers *mocks.MockContainerClient
	fs         *mocks.MockFileSystem
	svc        *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		runner:     mocks.NewMockRunner(),
		containers: mocks.NewMockContainerClient(),
		fs:         mocks.NewMockFileSystem(),
	}
	f.svc = NewService(f.runner, f.containers, f.fs)
	return f
}

func appProject() config.ProjectConfig {
	return config.ProjectConfig{
		Path:          "/srv/app",
		Branch:        "main",
		DeployingUser: "svc",
		Container:     "app-php",
	}
}

func TestUpdateComposer(t *testing.T) {
	f := newServiceFixture()
	f.fs.Files["/srv/app/composer.json"] = []byte("{}")

	if err := f.svc.UpdateComposer(context.Background(), appProject()); err != nil {
		t.Fatalf("UpdateComposer failed: %v", err)
	}
	if len(f.containers.Calls) != 1 {
		t.Fatalf("execs = %d, expected 1", len(f.containers.Calls))
	}
	call := f.containers.Calls[0]
	if call.Container != "app-php" || call.User != "svc" || call.WorkingDir != "/srv/app" {
		t.Errorf("exec call = %+v", call)
	}
	if !reflect.DeepEqual(call.Args, []string{"composer", "update", "--no-interaction", "--no-dev"}) {
		t.Errorf("exec args = %v", call.Args)
	}
}

func TestUpdateComposerBlocked(t *testing.T) {
	f := newServiceFixture()
	f.fs.Files["/srv/app/composer.json"] = []byte("{}")

	p := appProject()
	p.BlockComposerUpdates = true
	err := f.svc.UpdateComposer(context.Background(), p)
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("err = %v, expected a blocked refusal", err)
	}
	if len(f.containers.Calls) != 0 {
		t.Error("blocked update must refuse before any exec")
	}
}

func TestUpdateComposerWithoutManifest(t *testing.T) {
	f := newServiceFixture()

	err := f.svc.UpdateComposer(context.Background(), appProject())
	if err == nil || !strings.Contains(err.Error(), "composer.json") {
		t.Fatalf("err = %v, expected missing composer.json", err)
	}
	if len(f.containers.Calls) != 0 {
		t.Error("no exec should run without a composer.json")
	}
}

func TestUpdateNPM(t *testing.T) {
	f := newServiceFixture()
	f.fs.Files["/srv/app/package.json"] = []byte("{}")

	if err := f.svc.UpdateNPM(context.Background(), appProject()); err != nil {
		t.Fatalf("UpdateNPM failed: %v", err)
	}
	if len(f.runner.Calls) != 1 {
		t.Fatalf("commands = %d, expected 1", len(f.runner.Calls))
	}
	c := f.runner.Calls[0]
	if !reflect.DeepEqual(c.Args, []string{"npm", "update"}) || c.Dir != "/srv/app" || c.User != "svc" {
		t.Errorf("command = %+v", c)
	}
	// npm runs on the host, never in the container.
	if len(f.containers.Calls) != 0 {
		t.Error("npm update must not run in the container")
	}
}

func TestUpdateNPMBlocked(t *testing.T) {
	f := newServiceFixture()
	f.fs.Files["/srv/app/package.json"] = []byte("{}")

	p := appProject()
	p.BlockNPMUpdates = true
	err := f.svc.UpdateNPM(context.Background(), p)
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("err = %v, expected a blocked refusal", err)
	}
	if len(f.runner.Calls) != 0 {
		t.Error("blocked update must refuse before any command")
	}
}

func TestUpdateNPMWithoutManifest(t *testing.T) {
	f := newServiceFixture()

	err := f.svc.UpdateNPM(context.Background(), appProject())
	if err == nil || !strings.Contains(err.Error(), "package.json") {
		t.Fatalf("err = %v, expected missing package.json", err)
	}
}

func TestRestartSupervisor(t *testing.T) {
	f := newServiceFixture()

	p := appProject()
	p.SupervisorProcess = "queue-worker"
	if err := f.svc.RestartSupervisor(context.Background(), p); err != nil {
		t.Fatalf("RestartSupervisor failed: %v", err)
	}
	if len(f.containers.Calls) != 1 {
		t.Fatalf("execs = %d, expected 1", len(f.containers.Calls))
	}
	call := f.containers.Calls[0]
	if !reflect.DeepEqual(call.Args, []string{"supervisorctl", "restart", "queue-worker"}) {
		t.Errorf("exec args = %v", call.Args)
	}
	// supervisorctl needs the container's root, not the deploying user.
	if call.User != "" || call.WorkingDir != "" {
		t.Errorf("exec call = %+v, expected default user and dir", call)
	}
}

func TestRestartSupervisorRequiresProcess(t *testing.T) {
	f := newServiceFixture()

	err := f.svc.RestartSupervisor(context.Background(), appProject())
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestRestartService(t *testing.T) {
	f := newServiceFixture()

	p := appProject()
	p.SystemdService = "app.service"
	if err := f.svc.RestartService(context.Background(), p); err != nil {
		t.Fatalf("RestartService failed: %v", err)
	}
	if len(f.runner.Calls) != 1 {
		t.Fatalf("commands = %d, expected 1", len(f.runner.Calls))
	}
	c := f.runner.Calls[0]
	if !reflect.DeepEqual(c.Args, []string{"systemctl", "restart", "app.service"}) {
		t.Errorf("command = %v", c.Args)
	}
	// systemctl runs as root on the host.
	if c.User != "" {
		t.Errorf("User = %q, expected root", c.User)
	}
}

func TestToggleMaintenanceDownWhenLive(t *testing.T) {
	f := newServiceFixture()

	mode, err := f.svc.ToggleMaintenance(context.Background(), appProject())
	if err != nil {
		t.Fatalf("ToggleMaintenance failed: %v", err)
	}
	if mode != "down" {
		t.Errorf("mode = %q, expected down", mode)
	}
	if !reflect.DeepEqual(f.containers.Calls[0].Args, []string{"php", "artisan", "down"}) {
		t.Errorf("exec args = %v", f.containers.Calls[0].Args)
	}
}

func TestToggleMaintenanceUpWhenDown(t *testing.T) {
	f := newServiceFixture()
	f.fs.Files["/srv/app/storage/framework/down"] = []byte("{}")

	mode, err := f.svc.ToggleMaintenance(context.Background(), appProject())
	if err != nil {
		t.Fatalf("ToggleMaintenance failed: %v", err)
	}
	if mode != "up" {
		t.Errorf("mode = %q, expected up", mode)
	}
	if !reflect.DeepEqual(f.containers.Calls[0].Args, []string{"php", "artisan", "up"}) {
		t.Errorf("exec args = %v", f.containers.Calls[0].Args)
	}
}

func TestTrackerSync(t *testing.T) {
	f := newServiceFixture()

	p := appProject()
	p.TrackerSyncCommand = []string{"php", "artisan", "tracker:sync", "--chunk=500"}
	if err := f.svc.TrackerSync(context.Background(), p); err != nil {
		t.Fatalf("TrackerSync failed: %v", err)
	}
	if len(f.containers.Calls) != 1 {
		t.Fatalf("execs = %d, expected 1", len(f.containers.Calls))
	}
	if !reflect.DeepEqual(f.containers.Calls[0].Args, p.TrackerSyncCommand) {
		t.Errorf("exec args = %v", f.containers.Calls[0].Args)
	}
}

func TestTrackerSyncRequiresCommand(t *testing.T) {
	f := newServiceFixture()

	err := f.svc.TrackerSync(context.Background(), appProject())
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestContainerActionsWithoutDocker(t *testing.T) {
	fs := mocks.NewMockFileSystem()
	fs.Files["/srv/app/composer.json"] = []byte("{}")
	svc := NewService(mocks.NewMockRunner(), nil, fs)

	err := svc.UpdateComposer(context.Background(), appProject())
	if err == nil || !strings.Contains(err.Error(), "docker is not available") {
		t.Errorf("err = %v, expected a docker availability error", err)
	}
}

func TestExecFailureIsWrapped(t *testing.T) {
	f := newServiceFixture()
	f.fs.Files["/srv/app/composer.json"] = []byte("{}")
	f.containers.Fail("composer update --no-interaction --no-dev", 2, "Your requirements could not be resolved")

	err := f.svc.UpdateComposer(context.Background(), appProject())
	if err == nil || !strings.Contains(err.Error(), "composer update failed") {
		t.Fatalf("err = %v", err)
	}
}
