package apicache

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/observe"
)

// DefaultTTL is the lifetime of a fetched value unless overridden.
const DefaultTTL = 5 * time.Minute

// TagAPI is attached to every value stored by a Client.
const TagAPI = "api"

// ErrNilFetch is returned when Get is called without a fetch function.
var ErrNilFetch = errors.New("apicache: fetch function is nil")

// FetchFunc loads the value for a key from its origin.
type FetchFunc = observe.FetchFunc

// EndpointTag returns the tag grouping every value fetched from endpoint.
func EndpointTag(endpoint string) string {
	return "endpoint:" + endpoint
}

// Client caches the results of remote fetches.
// It is safe for concurrent use.
type Client struct {
	cache  cache.Cache
	mw     *observe.Middleware
	logger observe.Logger
	group  singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithMiddleware instruments fetches with tracing, metrics and logging.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Client) {
		if mw != nil {
			c.mw = mw
		}
	}
}

// WithLogger sets the logger used for stale serves.
// Defaults to the middleware's logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client over c.
func New(c cache.Cache, opts ...Option) *Client {
	client := &Client{
		cache: c,
		mw:    observe.NewMiddleware(nil, nil, nil),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.logger == nil {
		client.logger = client.mw.Logger()
	}
	client.logger = client.logger.WithComponent("apicache")
	return client
}

// Get returns the cached value for key, or calls fetch and caches its result.
//
// The result is stored with DefaultTTL and TagAPI; opts are applied after
// those defaults. If fetch fails and a value for key is cached, that value is
// returned with a nil error. Otherwise the fetch error is returned as is.
//
// Concurrent calls for the same key share one fetch. A caller whose ctx is
// done returns ctx.Err() while the shared fetch runs to completion.
func (c *Client) Get(ctx context.Context, key string, fetch FetchFunc, opts ...cache.SetOption) ([]byte, error) {
	return c.get(ctx, observe.FetchMeta{Key: key, Tags: []string{TagAPI}}, fetch, opts)
}

// GetEndpoint is Get for a value fetched from a named endpoint. The value is
// additionally tagged with EndpointTag(endpoint). Calls only share a fetch
// with calls for the same endpoint and key.
func (c *Client) GetEndpoint(ctx context.Context, endpoint, key string, fetch FetchFunc, opts ...cache.SetOption) ([]byte, error) {
	meta := observe.FetchMeta{
		Key:      key,
		Endpoint: endpoint,
		Tags:     []string{TagAPI, EndpointTag(endpoint)},
	}
	return c.get(ctx, meta, fetch, opts)
}

// InvalidateAPI removes every value stored by a Client.
func (c *Client) InvalidateAPI(ctx context.Context) int {
	return c.cache.InvalidateByTag(ctx, TagAPI)
}

// InvalidateEndpoint removes every value fetched from endpoint.
func (c *Client) InvalidateEndpoint(ctx context.Context, endpoint string) int {
	return c.cache.InvalidateByTag(ctx, EndpointTag(endpoint))
}

func (c *Client) get(ctx context.Context, meta observe.FetchMeta, fetch FetchFunc, opts []cache.SetOption) ([]byte, error) {
	if err := cache.ValidateKey(meta.Key); err != nil {
		return nil, err
	}
	if fetch == nil {
		return nil, ErrNilFetch
	}
	if data, ok := c.cache.Get(ctx, meta.Key); ok {
		return data, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(meta), func() (any, error) {
		return c.fetchAndStore(shared, meta, fetch, opts)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		if data, ok := c.cache.Get(ctx, meta.Key); ok {
			c.mw.Metrics().RecordStale(ctx, meta)
			c.logger.Warn(ctx, "serving cached value after fetch failure",
				observe.F("key", meta.Key),
				observe.Err(res.Err),
			)
			return data, nil
		}
		return nil, res.Err
	}
	return slices.Clone(res.Val.([]byte)), nil
}

// flightKey separates flights whose results are stored with different tags.
func flightKey(meta observe.FetchMeta) string {
	if meta.Endpoint == "" {
		return meta.Key
	}
	return meta.Endpoint + "\x00" + meta.Key
}

func (c *Client) fetchAndStore(ctx context.Context, meta observe.FetchMeta, fetch FetchFunc, opts []cache.SetOption) ([]byte, error) {
	// A flight that started after another one stored the value reuses it.
	if c.cache.Has(ctx, meta.Key) {
		if data, ok := c.cache.Get(ctx, meta.Key); ok {
			return data, nil
		}
	}

	data, err := c.mw.Wrap(meta, fetch)(ctx)
	if err != nil {
		return nil, err
	}

	setOpts := make([]cache.SetOption, 0, len(opts)+2)
	setOpts = append(setOpts, cache.WithTTL(DefaultTTL), cache.WithTags(meta.Tags...))
	setOpts = append(setOpts, opts...)
	if err := c.cache.Set(ctx, meta.Key, data, setOpts...); err != nil {
		c.logger.Warn(ctx, "failed to cache fetched value",
			observe.F("key", meta.Key),
			observe.Err(err),
		)
	}
	return data, nil
}
