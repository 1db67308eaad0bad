// Package retry provides a deterministic exponential backoff wrapper for
// network operations.
//
// The schedule is intentionally jitter-free: wait times are exactly
// min(backoff_factor^attempt, max_wait) seconds, except when the failed
// operation carried a server-supplied Retry-After delay, which is always
// honored verbatim. This wrapper is distinct from the device flow's
// server-controlled poll interval, which never goes through here.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	apperrors "github.com/modelforge/modelforge/internal/errors"
)

// Options configures a Retrier. Validation happens when the Retrier is
// constructed, not when an operation runs.
type Options struct {
	// MaxRetries is the number of re-attempts after the first failure.
	// Zero means a single attempt with no retry.
	MaxRetries int

	// BackoffFactor is the exponential base, in seconds. Must be > 0.
	BackoffFactor float64

	// MaxWait caps a single computed wait. Must be > 0.
	MaxWait time.Duration

	// Retryable decides whether an error consumes retry budget. Nil
	// defaults to the network-timeout and rate-limit error kinds.
	Retryable func(error) bool

	// Logger receives per-attempt debug lines. Nil discards them.
	Logger *slog.Logger

	// Sleep is the wait function, injectable for tests. Nil uses a
	// context-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retrier wraps operations with the configured retry policy.
type Retrier struct {
	opts Options
}

// New validates opts and constructs a Retrier. Invalid parameters fail
// here so a misconfigured policy is caught at wiring time.
func New(opts Options) (*Retrier, error) {
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("retry: max retries must be >= 0, got %d", opts.MaxRetries)
	}
	if opts.BackoffFactor <= 0 {
		return nil, fmt.Errorf("retry: backoff factor must be > 0, got %g", opts.BackoffFactor)
	}
	if opts.MaxWait <= 0 {
		return nil, fmt.Errorf("retry: max wait must be > 0, got %s", opts.MaxWait)
	}
	if opts.Retryable == nil {
		opts.Retryable = apperrors.IsRetryable
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Retrier{opts: opts}, nil
}

// Do runs op, retrying on retryable failures per the configured policy.
// Non-retryable errors propagate on first occurrence without consuming
// any retry budget. Exhausting the budget returns the last retryable
// error unchanged.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !r.opts.Retryable(err) {
			return err
		}
		if attempt == r.opts.MaxRetries {
			return err
		}

		wait := r.waitFor(err, attempt)
		r.opts.Logger.Debug("retrying after failure",
			"attempt", attempt+1,
			"max_retries", r.opts.MaxRetries,
			"wait", wait,
			"error", err,
		)
		if sleepErr := r.opts.Sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
	}
}

// Wrap returns a function with the retry policy baked in.
func (r *Retrier) Wrap(op func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return r.Do(ctx, op)
	}
}

// waitFor computes the wait before the next attempt. A server-provided
// Retry-After takes precedence over the exponential schedule.
func (r *Retrier) waitFor(err error, attempt int) time.Duration {
	if after, ok := apperrors.RetryAfter(err); ok {
		return after
	}
	seconds := math.Pow(r.opts.BackoffFactor, float64(attempt))
	wait := time.Duration(seconds * float64(time.Second))
	if wait > r.opts.MaxWait || wait <= 0 {
		wait = r.opts.MaxWait
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
