package ports

// Locker serializes mutating actions against one project path. Two
// invocations racing on the same working tree would interleave git commands
// and corrupt the revision record, so deploy and revert both take the lock
// for their full duration.
type Locker interface {
	// Acquire takes an exclusive advisory lock scoped to projectPath.
	// It does not block: if another process holds the lock, Acquire fails
	// immediately. The returned release function is safe to call on every
	// exit path, including after failure.
	Acquire(projectPath string) (release func(), err error)
}
