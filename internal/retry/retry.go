// Package retry implements the bounded, fixed-delay retry policy used for
// remote fetches.
package retry

import (
	"context"
	"time"
)

// Policy retries an operation a fixed number of times with a fixed delay
// between attempts. The delay is deliberately not exponential: fetches are
// low-frequency, human-triggered operations, not a high-QPS service.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the pause between consecutive attempts. There is no pause
	// after the final attempt.
	Delay time.Duration

	// Sleep waits for the given duration or until ctx is cancelled.
	// Overridable in tests; nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run invokes fn until it succeeds or the attempt budget is exhausted,
// returning the error of the last attempt. Cancellation of ctx during the
// inter-attempt delay aborts the remaining attempts.
func (p Policy) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if serr := sleep(ctx, p.Delay); serr != nil {
				return serr
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
