package apicache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/toolcache/cache"
)

// Fetch is Get for JSON-encodable values.
// A cached value that no longer decodes into T is dropped and the error returned.
func Fetch[T any](ctx context.Context, c *Client, key string, fn func(context.Context) (T, error), opts ...cache.SetOption) (T, error) {
	var zero T
	raw, err := c.Get(ctx, key, encodeWith(fn), opts...)
	if err != nil {
		return zero, err
	}
	return decode[T](ctx, c, key, raw)
}

// FetchEndpoint is GetEndpoint for JSON-encodable values.
func FetchEndpoint[T any](ctx context.Context, c *Client, endpoint, key string, fn func(context.Context) (T, error), opts ...cache.SetOption) (T, error) {
	var zero T
	raw, err := c.GetEndpoint(ctx, endpoint, key, encodeWith(fn), opts...)
	if err != nil {
		return zero, err
	}
	return decode[T](ctx, c, key, raw)
}

func encodeWith[T any](fn func(context.Context) (T, error)) FetchFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("apicache: encode value: %w", err)
		}
		return data, nil
	}
}

func decode[T any](ctx context.Context, c *Client, key string, raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.cache.Delete(ctx, key)
		var zero T
		return zero, fmt.Errorf("apicache: decode %q: %w", key, err)
	}
	return out, nil
}
