package cache

import "time"

// Policy configures capacity and TTL defaults.
type Policy struct {
	// DefaultTTL is used when Set is not given a positive TTL.
	// If zero, Set stores nothing unless a TTL is passed.
	DefaultTTL time.Duration

	// MaxTTL clamps caller-supplied TTLs. Zero means no maximum.
	MaxTTL time.Duration

	// MaxSize is the maximum number of entries. Zero means unbounded.
	MaxSize int
}

// Default policy values.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 100
)

// DefaultPolicy returns the default policy.
// DefaultTTL: 5 minutes, MaxTTL: none, MaxSize: 100
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: DefaultTTL,
		MaxSize:    DefaultMaxSize,
	}
}

// NoCachePolicy returns a policy under which Set without an explicit TTL stores nothing.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if entries are stored without an explicit TTL.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to use, applying the default and clamping to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
