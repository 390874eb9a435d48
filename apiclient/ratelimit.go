package apiclient

import (
	"context"
	"sync"
	"time"
)

// limiter is a token bucket. A zero rate disables limiting.
type limiter struct {
	rate    float64
	burst   int
	maxWait time.Duration

	mu          sync.Mutex
	tokens      float64
	lastRefresh time.Time
}

func newLimiter(rate float64, burst int) *limiter {
	if rate <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		rate:        rate,
		burst:       burst,
		maxWait:     5 * time.Second,
		tokens:      float64(burst),
		lastRefresh: time.Now(),
	}
}

// wait blocks until a token is available, ctx is done, or maxWait elapses.
func (l *limiter) wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	l.refillLocked()
	if l.tokens >= 1 {
		l.tokens--
		l.mu.Unlock()
		return nil
	}
	wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	l.mu.Unlock()

	if wait > l.maxWait {
		return ErrRateLimitExceeded
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	if l.tokens >= 1 {
		l.tokens--
		return nil
	}
	return ErrRateLimitExceeded
}

func (l *limiter) refillLocked() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefresh).Seconds() * l.rate
	l.lastRefresh = now
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
}
