package deploy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mcdonaldj/deployctl/internal/config"
	"github.com/mcdonaldj/deployctl/internal/mocks"
)

type executorFixture struct {
	runner     *mocks.MockRunner
	containers *mocks.MockContainerClient
	fs         *mocks.MockFileSystem
	locker     *mocks.MockLocker
	executor   *Executor
}

func newExecutorFixture() *executorFixture {
	f := &executorFixture{
		runner:     mocks.NewMockRunner(),
		containers: mocks.NewMockContainerClient(),
		fs:         mocks.NewMockFileSystem(),
		locker:     mocks.NewMockLocker(),
	}
	f.fs.AddDir("/srv/app/.git")
	f.executor = NewExecutor(f.runner, f.containers, f.fs, f.locker, 0,
		WithFetchPolicy(fastPolicy(3)))
	return f
}

func appProject() config.ProjectConfig {
	return config.ProjectConfig{
		Path:          "/srv/app",
		Branch:        "main",
		DeployingUser: "svc",
	}
}

func scriptHappyPath(runner *mocks.MockRunner) {
	runner.Respond("git rev-parse HEAD", "abc123\n")
	runner.Respond("git rev-parse HEAD", "def456\n")
	runner.Respond("git branch -r", "  origin/main\n  origin/dev\n")
	runner.Respond("git status --porcelain", "")
}

func TestDeployHappyPath(t *testing.T) {
	f := newExecutorFixture()
	scriptHappyPath(f.runner)

	res, err := f.executor.Deploy(context.Background(), appProject())
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if res.PreDeployCommit != "abc123" {
		t.Errorf("PreDeployCommit = %q", res.PreDeployCommit)
	}
	if res.PostDeployCommit != "def456" {
		t.Errorf("PostDeployCommit = %q", res.PostDeployCommit)
	}

	// The rollback record holds the pre-deploy commit, written before any
	// mutation step ran.
	if got := string(f.fs.Files["/srv/app/LAST_REVISION"]); got != "abc123\n" {
		t.Errorf("LAST_REVISION = %q", got)
	}

	expected := []string{
		"git fetch --all",
		"git rev-parse HEAD",
		"git branch -r",
		"git status --porcelain",
		"git fetch --all",
		"git checkout main",
		"git reset --hard origin/main",
		"git submodule update --init --recursive",
		"git rev-parse HEAD",
	}
	if got := f.runner.CommandLines(); !reflect.DeepEqual(got, expected) {
		t.Errorf("command sequence = %v, expected %v", got, expected)
	}

	// Every git command runs in the project tree as the deploying user.
	for _, c := range f.runner.Calls {
		if c.Args[0] != "git" {
			continue
		}
		if c.User != "svc" || c.Dir != "/srv/app" {
			t.Errorf("git command %v ran as %q in %q", c.Args, c.User, c.Dir)
		}
	}

	if f.locker.Released != 1 {
		t.Errorf("Released = %d, expected 1", f.locker.Released)
	}
}

func TestDeployRunsMigrationHook(t *testing.T) {
	f := newExecutorFixture()
	scriptHappyPath(f.runner)

	p := appProject()
	p.Container = "app-php"
	res, err := f.executor.Deploy(context.Background(), p)
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if !res.HookRan {
		t.Error("HookRan should be true when a container is configured")
	}
	if res.HookErr != nil {
		t.Errorf("HookErr = %v", res.HookErr)
	}
	if len(f.containers.Calls) != 1 {
		t.Fatalf("container execs = %d, expected 1", len(f.containers.Calls))
	}
	call := f.containers.Calls[0]
	if call.Container != "app-php" || call.User != "svc" || call.WorkingDir != "/srv/app" {
		t.Errorf("exec call = %+v", call)
	}
	if got := call.Args; !reflect.DeepEqual(got, []string{"php", "artisan", "migrate", "--force"}) {
		t.Errorf("exec args = %v", got)
	}
}

func TestDeployToleratesHookFailure(t *testing.T) {
	f := newExecutorFixture()
	scriptHappyPath(f.runner)
	f.containers.Fail("php artisan migrate --force", 1, "migration error")

	p := appProject()
	p.Container = "app-php"
	res, err := f.executor.Deploy(context.Background(), p)
	if err != nil {
		t.Fatalf("Deploy should succeed despite a failing hook: %v", err)
	}
	if res.HookErr == nil {
		t.Error("HookErr should carry the hook failure")
	}
	if res.PostDeployCommit != "def456" {
		t.Errorf("PostDeployCommit = %q", res.PostDeployCommit)
	}
}

func TestDeployFixesDataFileOwnership(t *testing.T) {
	f := newExecutorFixture()
	scriptHappyPath(f.runner)
	f.fs.Files["/srv/app/storage/database.sqlite"] = []byte("db")

	res, err := f.executor.Deploy(context.Background(), appProject())
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if !res.OwnershipFixed {
		t.Error("OwnershipFixed should be true")
	}

	found := false
	for _, line := range f.runner.CommandLines() {
		if line == "chown "+config.DefaultDataFileOwner+" /srv/app/storage/database.sqlite" {
			found = true
		}
	}
	if !found {
		t.Errorf("chown not run, commands: %v", f.runner.CommandLines())
	}
}

func TestDeploySkipsOwnershipWhenFileAbsent(t *testing.T) {
	f := newExecutorFixture()
	scriptHappyPath(f.runner)

	res, err := f.executor.Deploy(context.Background(), appProject())
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if res.OwnershipFixed {
		t.Error("OwnershipFixed should be false when the data file is absent")
	}
	for _, line := range f.runner.CommandLines() {
		if line == "chown nginx:nginx-data /srv/app/storage/database.sqlite" {
			t.Error("chown should not run when the data file is absent")
		}
	}
}

func TestDeployAbortsOnMissingBranch(t *testing.T) {
	f := newExecutorFixture()
	f.runner.Respond("git rev-parse HEAD", "abc123\n")
	f.runner.Respond("git branch -r", "  origin/dev\n")

	_, err := f.executor.Deploy(context.Background(), appProject())
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Reason != BranchNotFound {
		t.Fatalf("expected BranchNotFound, got %v", err)
	}

	// No mutation step ran, but the rollback record was already written.
	for _, line := range f.runner.CommandLines() {
		if line == "git checkout main" || line == "git reset --hard origin/main" {
			t.Errorf("mutation step %q ran after a failed precondition", line)
		}
	}
	if got := string(f.fs.Files["/srv/app/LAST_REVISION"]); got != "abc123\n" {
		t.Errorf("LAST_REVISION = %q, expected the record to be kept", got)
	}
	if f.locker.Released != 1 {
		t.Errorf("Released = %d, lock must drop on failure too", f.locker.Released)
	}
}

func TestDeployAbortsOnDirtyTree(t *testing.T) {
	f := newExecutorFixture()
	f.runner.Respond("git rev-parse HEAD", "abc123\n")
	f.runner.Respond("git branch -r", "  origin/main\n")
	f.runner.Respond("git status --porcelain", " M config/app.php\n")

	_, err := f.executor.Deploy(context.Background(), appProject())
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Reason != DirtyWorkingTree {
		t.Fatalf("expected DirtyWorkingTree, got %v", err)
	}
	for _, line := range f.runner.CommandLines() {
		if line == "git checkout main" {
			t.Error("mutation ran despite a dirty tree")
		}
	}
}

func TestDeployFailsWhenFetchExhausted(t *testing.T) {
	f := newExecutorFixture()
	f.runner.Fail("git fetch --all", 128, "fatal: unable to access remote")

	_, err := f.executor.Deploy(context.Background(), appProject())
	var fErr *FetchError
	if !errors.As(err, &fErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	// Nothing beyond the fetch attempts ran.
	for _, line := range f.runner.CommandLines() {
		if line != "git fetch --all" {
			t.Errorf("unexpected command after failed fetch: %q", line)
		}
	}
	if f.locker.Released != 1 {
		t.Errorf("Released = %d", f.locker.Released)
	}
}

func TestDeployFailsOnMutationError(t *testing.T) {
	f := newExecutorFixture()
	scriptHappyPath(f.runner)
	f.runner.Fail("git checkout main", 1, "error: pathspec 'main' did not match")

	_, err := f.executor.Deploy(context.Background(), appProject())
	var eErr *ExecutionError
	if !errors.As(err, &eErr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
	if eErr.Phase != PhaseMutate {
		t.Errorf("Phase = %q, expected %q", eErr.Phase, PhaseMutate)
	}
	for _, line := range f.runner.CommandLines() {
		if line == "git reset --hard origin/main" {
			t.Error("reset ran after the checkout failed")
		}
	}
}

func TestDeployRejectsNonGitTree(t *testing.T) {
	f := newExecutorFixture()
	delete(f.fs.Stats, "/srv/app/.git")

	_, err := f.executor.Deploy(context.Background(), appProject())
	if err == nil {
		t.Fatal("Deploy should fail outside a git working tree")
	}
	if len(f.runner.Calls) != 0 {
		t.Errorf("no commands should run, got %v", f.runner.CommandLines())
	}
	if len(f.locker.Acquired) != 0 {
		t.Error("the lock should not be taken before the tree check")
	}
}

func TestDeployRejectsIncompleteConfig(t *testing.T) {
	f := newExecutorFixture()

	_, err := f.executor.Deploy(context.Background(), config.ProjectConfig{Path: "/srv/app"})
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestDeployFailsWhenLockHeld(t *testing.T) {
	f := newExecutorFixture()
	f.locker.Err = errors.New("another deployctl action is already running against /srv/app")

	_, err := f.executor.Deploy(context.Background(), appProject())
	if err == nil {
		t.Fatal("Deploy should fail when the lock is held")
	}
	if len(f.runner.Calls) != 0 {
		t.Errorf("no commands should run under contention, got %v", f.runner.CommandLines())
	}
}
