package errors

import (
	"context"
	"errors"
	"time"
)

// Retryer retries operations that may fail transiently.
type Retryer struct {
	maxAttempts int
	retryDelay  func(attempt int) time.Duration
	retryable   func(error) bool
	onRetry     func(attempt int, err error)
}

// NewRetryer creates a retryer making at most maxAttempts calls.
func NewRetryer(maxAttempts int) *Retryer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retryer{
		maxAttempts: maxAttempts,
		retryDelay: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 100 * time.Millisecond
		},
		retryable: func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return !IsClientError(err)
		},
	}
}

// WithRetryDelay sets the delay before the attempt following attempt n.
func (r *Retryer) WithRetryDelay(fn func(int) time.Duration) *Retryer {
	r.retryDelay = fn
	return r
}

// WithBackoff sets a quadratic backoff with the given base.
func (r *Retryer) WithBackoff(base time.Duration) *Retryer {
	return r.WithRetryDelay(func(attempt int) time.Duration {
		return time.Duration(attempt*attempt) * base
	})
}

// WithRetryable sets the retryable predicate
func (r *Retryer) WithRetryable(fn func(error) bool) *Retryer {
	r.retryable = fn
	return r
}

// OnRetry registers a callback invoked before each retry.
func (r *Retryer) OnRetry(fn func(attempt int, err error)) *Retryer {
	r.onRetry = fn
	return r
}

// MaxAttempts returns the attempt bound.
func (r *Retryer) MaxAttempts() int {
	return r.maxAttempts
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done.
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == r.maxAttempts || !r.retryable(err) {
			break
		}

		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}

		timer := time.NewTimer(r.retryDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}
