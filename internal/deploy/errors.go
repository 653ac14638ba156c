package deploy

import "fmt"

// ValidationReason identifies which precondition failed.
type ValidationReason string

const (
	// BranchNotFound means origin/<branch> is absent after the fetch.
	BranchNotFound ValidationReason = "branch not found on remote"
	// DirtyWorkingTree means the porcelain status reported local changes.
	DirtyWorkingTree ValidationReason = "dirty working tree"
)

// ValidationError reports a failed pre-mutation check. No write has happened
// to the working tree when this is returned.
type ValidationError struct {
	Reason ValidationReason
	Branch string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case BranchNotFound:
		return fmt.Sprintf("branch %q does not exist on the remote", e.Branch)
	case DirtyWorkingTree:
		return "working tree has uncommitted changes; commit or stash them before deploying"
	default:
		return string(e.Reason)
	}
}

// FetchError reports a fetch that failed across the whole retry budget. It
// carries the stderr of the last attempt for diagnosis.
type FetchError struct {
	Attempts int
	Stderr   string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching remote refs failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Phases of a deploy, named in ExecutionError so an aborted run reports
// exactly which step was cut short.
const (
	PhaseCaptureRevision = "capture-revision"
	PhaseMutate          = "mutate"
	PhaseFinalize        = "finalize"
)

// ExecutionError reports a failed command during the deploy sequence. After a
// mutate-phase failure the repository is left in whatever partial state the
// failing command produced; recovery is an explicit revert, never automatic.
type ExecutionError struct {
	Phase string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("deploy failed during %s: %v", e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
