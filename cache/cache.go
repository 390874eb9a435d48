package cache

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache is the interface consumers of a Manager depend on.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: only Set returns an error, and only for an invalid key.
// - Expiry: an expired entry is never returned by Get or reported by Has.
type Cache interface {
	// Get returns a fresh value and records the access. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value, replacing any existing entry under key.
	Set(ctx context.Context, key string, value []byte, opts ...SetOption) error

	// Has reports whether a fresh entry exists without recording an access.
	Has(ctx context.Context, key string) bool

	// Delete removes key and reports whether it was present.
	Delete(ctx context.Context, key string) bool

	// InvalidateByTag removes every entry carrying tag and returns the count.
	InvalidateByTag(ctx context.Context, tag string) int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

var _ Cache = (*Manager)(nil)
