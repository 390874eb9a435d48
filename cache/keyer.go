package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// DefaultKeyPrefix namespaces keys derived for API responses.
const DefaultKeyPrefix = "api"

// Keyer generates deterministic cache keys from an endpoint name and its parameters.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(endpoint string, params any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct {
	Prefix string
}

// NewDefaultKeyer creates a keyer using DefaultKeyPrefix.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{Prefix: DefaultKeyPrefix}
}

// Key generates a deterministic cache key.
// Format: <prefix>:<endpoint>:<hash>
// where hash is the first 16 hex characters of SHA-256(canonical JSON(params)).
func (k *DefaultKeyer) Key(endpoint string, params any) (string, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, params); err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize params: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())

	prefix := k.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	key := fmt.Sprintf("%s:%s:%s", prefix, endpoint, hex.EncodeToString(sum[:8]))
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// writeCanonical encodes v as JSON with object keys sorted at every level.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case map[string]any:
		buf.WriteByte('{')
		for i, key := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return writeCanonical(buf, m)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		// encoding/json already sorts map keys and keeps struct field order.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

var _ Keyer = (*DefaultKeyer)(nil)
