package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/toolcache/apicache"
	"github.com/jonwraymond/toolcache/apiclient"
	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/config"
	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/store"
)

// app holds the components a command operates on.
type app struct {
	cfg    config.Config
	opts   globalOptions
	logger observe.Logger
	obs    observe.Observer
	store  store.Store
	cache  *cache.Manager
	fetch  *apicache.Client
	api    *apiclient.Client
}

func newApp(ctx context.Context, cfg config.Config, opts globalOptions, stderr io.Writer) (*app, error) {
	obsCfg := cfg.ObserveConfig()
	obsCfg.Logging.Output = stderr
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("cachectl: telemetry: %w", err)
	}
	logger := obs.Logger()

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("cachectl: open store: %w", err)
	}

	m := cache.New(ctx,
		cache.WithPolicy(cfg.Policy()),
		cache.WithStore(st, cfg.Cache.Slot),
		cache.WithLogger(logger),
		cache.WithMetrics(obs.Metrics()),
	)
	fetch := apicache.New(m,
		apicache.WithMiddleware(observe.MiddlewareFromObserver(obs)),
		apicache.WithLogger(logger),
	)

	api, err := apiclient.New(cfg.ClientConfig(),
		apiclient.WithCache(fetch),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		_ = m.Close(ctx)
		_ = st.Close()
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("cachectl: %w", err)
	}

	return &app{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		obs:    obs,
		store:  st,
		cache:  m,
		fetch:  fetch,
		api:    api,
	}, nil
}

// Close flushes the cache and releases the store and telemetry providers.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(
		a.cache.Close(ctx),
		a.store.Close(),
		a.obs.Shutdown(ctx),
	)
}
