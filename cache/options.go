package cache

import (
	"time"

	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/store"
)

// DefaultSlot is the store slot a Manager snapshots into.
const DefaultSlot = "hexstrike-cache"

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy replaces the capacity and TTL policy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(n int) Option {
	return func(m *Manager) { m.policy.MaxSize = n }
}

// WithDefaultTTL sets the TTL used when Set is not given one.
func WithDefaultTTL(d time.Duration) Option {
	return func(m *Manager) { m.policy.DefaultTTL = d }
}

// WithStore enables persistence into slot of s. An empty slot means DefaultSlot.
// The Manager does not close s.
func WithStore(s store.Store, slot string) Option {
	return func(m *Manager) {
		if slot == "" {
			slot = DefaultSlot
		}
		m.store = s
		m.slot = slot
	}
}

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l observe.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. Nil means no metrics.
func WithMetrics(mt observe.Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// withSweepInterval overrides SweepInterval. Zero disables the sweep goroutine.
func withSweepInterval(d time.Duration) Option {
	return func(m *Manager) { m.sweepInterval = d }
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl     time.Duration
	tags    []string
	persist bool
}

// WithTTL sets the entry TTL. Values <= 0 use the policy default.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = d }
}

// WithTags appends invalidation tags to the entry.
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) { o.tags = append(o.tags, tags...) }
}

// WithoutPersist skips the snapshot write for this Set.
func WithoutPersist() SetOption {
	return func(o *setOptions) { o.persist = false }
}
