package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
)

// Retry runs fn with a bounded per-attempt timeout and retries transient failures with
// exponential backoff. Only pass operations whose success is distinguishable from a lost
// precondition: a retried conditional write that loses the race must surface as a
// business error, never as a second apply.
//
// Non-transient errors are returned as-is. Exhausted transient errors wrap ErrUnavailable.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastTransient error
	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			err := fn(attemptCtx)
			if err == nil {
				return nil
			}
			if ctx.Err() == nil && IsTransient(err) {
				lastTransient = err
				return err
			}
			return retry.Unrecoverable(err)
		},
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	if lastTransient != nil && errors.Is(err, lastTransient) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// WithTimeout bounds a single store call.
func WithTimeout(ctx context.Context, cfg RetryConfig) (context.Context, context.CancelFunc) {
	cfg = cfg.withDefaults()
	return context.WithTimeout(ctx, cfg.Timeout)
}
