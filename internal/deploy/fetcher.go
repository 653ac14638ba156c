package deploy

import (
	"context"
	"errors"
	"time"

	"github.com/mcdonaldj/deployctl/internal/ports"
	"github.com/mcdonaldj/deployctl/internal/retry"
)

// Default fetch retry budget: three attempts, ten seconds apart.
const (
	DefaultFetchAttempts = 3
	DefaultFetchDelay    = 10 * time.Second
)

// Fetcher refreshes all remote refs with bounded retries. A transient network
// or auth hiccup gets another chance; persistent failure surfaces as a
// FetchError carrying the last attempt's stderr.
type Fetcher struct {
	runner ports.CommandRunner
	policy retry.Policy
}

// NewFetcher creates a fetcher with the default retry policy.
func NewFetcher(runner ports.CommandRunner) *Fetcher {
	return NewFetcherWithPolicy(runner, retry.Policy{
		MaxAttempts: DefaultFetchAttempts,
		Delay:       DefaultFetchDelay,
	})
}

// NewFetcherWithPolicy creates a fetcher with an explicit retry policy.
func NewFetcherWithPolicy(runner ports.CommandRunner, policy retry.Policy) *Fetcher {
	return &Fetcher{runner: runner, policy: policy}
}

// FetchAll runs `git fetch --all` in the project path as the deploying user,
// retrying per the policy.
func (f *Fetcher) FetchAll(ctx context.Context, path, user string) error {
	var lastStderr string

	err := f.policy.Run(ctx, func(ctx context.Context) error {
		res, err := f.runner.Run(ctx, ports.Command{
			Args: []string{"git", "fetch", "--all"},
			Dir:  path,
			User: user,
		})
		if err != nil {
			lastStderr = res.Stderr
		}
		return err
	})
	if err == nil {
		return nil
	}
	// Operator cancellation is not a fetch failure; report it as-is.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &FetchError{Attempts: f.policy.MaxAttempts, Stderr: lastStderr, Err: err}
}
