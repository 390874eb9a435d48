package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolcache/apiclient"
	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/store"
)

// CacheSource is the part of a cache.Manager the cache checker reads.
type CacheSource interface {
	Stats() cache.Stats
	LastPersistError() error
}

// CacheCheckerConfig configures the cache checker.
type CacheCheckerConfig struct {
	// FullThreshold is the fill ratio at which the cache is degraded.
	// Default: 0.9
	FullThreshold float64
}

// CacheChecker reports a cache as degraded when it is nearly full or its
// last snapshot write failed. A cache is never unhealthy: it still serves
// from memory.
type CacheChecker struct {
	src       CacheSource
	threshold float64
}

// NewCacheChecker creates a CacheChecker for src.
func NewCacheChecker(src CacheSource, cfg CacheCheckerConfig) *CacheChecker {
	if cfg.FullThreshold <= 0 || cfg.FullThreshold > 1 {
		cfg.FullThreshold = 0.9
	}
	return &CacheChecker{src: src, threshold: cfg.FullThreshold}
}

// Name returns "cache".
func (c *CacheChecker) Name() string { return "cache" }

// Check inspects the cache statistics.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	s := c.src.Stats()
	details := map[string]any{
		"size":           s.Size,
		"max_size":       s.MaxSize,
		"expired":        s.Expired,
		"bytes":          s.TotalSizeBytes,
		"hits":           s.Hits,
		"misses":         s.Misses,
		"evictions":      s.Evictions,
		"persist_errors": s.PersistErrors,
	}

	if err := c.src.LastPersistError(); err != nil {
		r := Degraded("snapshot persistence failing").WithDetails(details)
		r.Error = err
		return r
	}
	if s.MaxSize > 0 {
		fill := float64(s.Size) / float64(s.MaxSize)
		details["fill"] = fill
		if fill >= c.threshold {
			return Degraded(fmt.Sprintf("cache %.0f%% full", fill*100)).WithDetails(details)
		}
	}
	return Healthy("cache operating normally").WithDetails(details)
}

// ProbeSlot is the slot StoreChecker writes to.
const ProbeSlot = "health-probe"

// StoreChecker verifies a store by saving, loading and removing a probe slot.
type StoreChecker struct {
	st store.Store
}

// NewStoreChecker creates a StoreChecker for st.
func NewStoreChecker(st store.Store) *StoreChecker {
	return &StoreChecker{st: st}
}

// Name returns "store".
func (c *StoreChecker) Name() string { return "store" }

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Check pings the store if it supports it, then performs the probe round trip.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if p, ok := c.st.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("store unreachable", err)
		}
	}
	probe := []byte(uuid.NewString())

	if err := c.st.Save(ctx, ProbeSlot, probe); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			r := Degraded("store quota exceeded")
			r.Error = err
			return r
		}
		return Unhealthy("store save failed", err)
	}
	got, err := c.st.Load(ctx, ProbeSlot)
	if err != nil {
		return Unhealthy("store load failed", err)
	}
	if !bytes.Equal(got, probe) {
		return Unhealthy("store returned different data", ErrProbeMismatch)
	}
	if err := c.st.Remove(ctx, ProbeSlot); err != nil {
		return Unhealthy("store remove failed", err)
	}
	return Healthy("store round trip ok")
}

// APISource is the part of an apiclient.Client the API checker calls.
type APISource interface {
	Health(ctx context.Context) (map[string]any, error)
}

// APIChecker calls the remote health endpoint.
// An open circuit breaker is reported as degraded.
type APIChecker struct {
	api APISource
}

// NewAPIChecker creates an APIChecker for api.
func NewAPIChecker(api APISource) *APIChecker {
	return &APIChecker{api: api}
}

// Name returns "api".
func (c *APIChecker) Name() string { return "api" }

// Check calls the remote health endpoint.
func (c *APIChecker) Check(ctx context.Context) Result {
	report, err := c.api.Health(ctx)
	if errors.Is(err, apiclient.ErrCircuitOpen) {
		r := Degraded("api circuit breaker open")
		r.Error = err
		return r
	}
	if err != nil {
		return Unhealthy("api unreachable", err)
	}

	status, _ := report["status"].(string)
	switch status {
	case "", "ok", "healthy":
		return Healthy("api reachable").WithDetails(report)
	default:
		return Degraded("api reports " + status).WithDetails(report)
	}
}
