package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a full round of checks.
const DefaultTimeout = 10 * time.Second

// Aggregator runs a set of checkers and combines their results.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
}

// NewAggregator creates an Aggregator. A non-positive timeout means DefaultTimeout.
func NewAggregator(timeout ...time.Duration) *Aggregator {
	t := DefaultTimeout
	if len(timeout) > 0 && timeout[0] > 0 {
		t = timeout[0]
	}
	return &Aggregator{timeout: t}
}

// Register adds c, replacing a checker with the same name.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, existing := range a.checkers {
		if existing.Name() == c.Name() {
			a.checkers[i] = c
			return
		}
	}
	a.checkers = append(a.checkers, c)
}

// Names returns the registered checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.checkers))
	for i, c := range a.checkers {
		names[i] = c.Name()
	}
	return names
}

// NamedResult pairs a checker name with its result.
type NamedResult struct {
	Name string
	Result
}

// Report is the outcome of running every checker.
type Report struct {
	Status  Status
	Results []NamedResult // registration order
}

// Check runs the named checker.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	var found Checker
	for _, c := range a.checkers {
		if c.Name() == name {
			found = c
			break
		}
	}
	a.mu.RUnlock()

	if found == nil {
		return Result{}, ErrCheckerNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return run(ctx, found), nil
}

// CheckAll runs every checker in parallel and returns the combined report.
func (a *Aggregator) CheckAll(ctx context.Context) Report {
	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]NamedResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = NamedResult{Name: c.Name(), Result: run(ctx, c)}
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, r := range results {
		overall = overall.Worst(r.Status)
	}
	return Report{Status: overall, Results: results}
}

// run executes c, giving up when ctx is done.
func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	ch := make(chan Result, 1)
	go func() {
		ch <- c.Check(ctx)
	}()

	var r Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Duration = time.Since(start)
	if r.Timestamp.IsZero() {
		r.Timestamp = start
	}
	return r
}
