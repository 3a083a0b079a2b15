package stats

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RetryObserver is invoked before each retry delay with the attempt that just
// failed (1-based), the wait about to be taken and the error that caused it.
type RetryObserver func(attempt int, wait time.Duration, err error)

// WithRetries invokes op up to attempts times. After a failed attempt it
// waits initialBackoff doubled per retry before trying again, and returns the
// last error once attempts are exhausted. The observer, if any, is called
// before every delay, never after the final failure.
func WithRetries(
	ctx context.Context,
	attempts int,
	initialBackoff time.Duration,
	observe RetryObserver,
	op func(context.Context) error,
) error {
	if attempts < 1 {
		attempts = 1
	}

	backoff := initialBackoff

	var last error

	for attempt := 1; attempt <= attempts; attempt++ {
		last = op(ctx)
		if last == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		if observe != nil {
			observe(attempt, backoff, last)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(last, "aborted while waiting to retry")
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	return last
}
