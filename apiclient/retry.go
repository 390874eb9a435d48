package apiclient

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// retryPolicy retries transient failures with exponential backoff and jitter.
type retryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	onRetry      func(attempt int, err error, delay time.Duration)
}

func newRetryPolicy(maxAttempts int, initialDelay time.Duration) *retryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 100 * time.Millisecond
	}
	return &retryPolicy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     10 * time.Second,
		multiplier:   2.0,
	}
}

func (r *retryPolicy) do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt >= r.maxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (r *retryPolicy) delay(attempt int) time.Duration {
	d := time.Duration(float64(r.initialDelay) * math.Pow(r.multiplier, float64(attempt-1)))
	if d > r.maxDelay {
		d = r.maxDelay
	}
	if d >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}

// retryable reports whether err is a transport failure or a temporary status.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
