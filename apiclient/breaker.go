package apiclient

import (
	"sync"
	"time"
)

// BreakerState is the state of the circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every request through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects every request with ErrCircuitOpen.
	BreakerOpen
	// BreakerHalfOpen lets one probe request through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker opens after maxFailures consecutive failures and allows a single
// probe once resetTimeout has passed since the last failure.
type breaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
	onChange     func(from, to BreakerState)

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

func newBreaker(maxFailures int, resetTimeout time.Duration) *breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// allow reserves a request slot or returns ErrCircuitOpen.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentLocked() {
	case BreakerOpen:
		return ErrCircuitOpen
	case BreakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

// record reports the outcome of a request admitted by allow.
func (b *breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		b.lastFailure = b.now()
		if b.failures >= b.maxFailures {
			b.setLocked(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.probing = false
		if failed {
			b.lastFailure = b.now()
			b.setLocked(BreakerOpen)
			return
		}
		b.failures = 0
		b.setLocked(BreakerClosed)
	}
}

func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

func (b *breaker) currentLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		b.setLocked(BreakerHalfOpen)
	}
	return b.state
}

func (b *breaker) setLocked(s BreakerState) {
	if s == b.state {
		return
	}
	from := b.state
	b.state = s
	if s == BreakerHalfOpen {
		b.probing = false
	}
	if b.onChange != nil {
		b.onChange(from, s)
	}
}
