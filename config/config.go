package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolcache/apiclient"
	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/store"
)

// Sentinel errors for configuration.
var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrInvalid           = errors.New("config: invalid configuration")
)

// Config is the complete configuration.
type Config struct {
	Cache   CacheConfig   `toml:"cache" yaml:"cache"`
	Store   StoreConfig   `toml:"store" yaml:"store"`
	API     APIConfig     `toml:"api" yaml:"api"`
	Observe ObserveConfig `toml:"observe" yaml:"observe"`
}

// CacheConfig configures the cache manager.
type CacheConfig struct {
	MaxSize    int      `toml:"max_size" yaml:"max_size"`
	DefaultTTL Duration `toml:"default_ttl" yaml:"default_ttl"`
	MaxTTL     Duration `toml:"max_ttl" yaml:"max_ttl"`
	Slot       string   `toml:"slot" yaml:"slot"`
}

// StoreConfig selects the snapshot store.
type StoreConfig struct {
	Driver string `toml:"driver" yaml:"driver"` // memory|file|sqlite
	Path   string `toml:"path" yaml:"path"`
}

// APIConfig configures the remote API client.
type APIConfig struct {
	BaseURL         string   `toml:"base_url" yaml:"base_url"`
	Timeout         Duration `toml:"timeout" yaml:"timeout"`
	RetryAttempts   int      `toml:"retry_attempts" yaml:"retry_attempts"`
	BreakerFailures int      `toml:"breaker_failures" yaml:"breaker_failures"`
	BreakerReset    Duration `toml:"breaker_reset" yaml:"breaker_reset"`
	RateLimit       float64  `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst       int      `toml:"rate_burst" yaml:"rate_burst"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName string        `toml:"service_name" yaml:"service_name"`
	Version     string        `toml:"version" yaml:"version"`
	Tracing     TracingConfig `toml:"tracing" yaml:"tracing"`
	Metrics     MetricsConfig `toml:"metrics" yaml:"metrics"`
	Logging     LoggingConfig `toml:"logging" yaml:"logging"`
}

// TracingConfig configures tracing.
type TracingConfig struct {
	Enabled   bool    `toml:"enabled" yaml:"enabled"`
	Exporter  string  `toml:"exporter" yaml:"exporter"`
	SamplePct float64 `toml:"sample_pct" yaml:"sample_pct"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Exporter string `toml:"exporter" yaml:"exporter"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Level   string `toml:"level" yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			MaxSize:    cache.DefaultMaxSize,
			DefaultTTL: Duration(cache.DefaultTTL),
			Slot:       cache.DefaultSlot,
		},
		Store: StoreConfig{Driver: store.DriverMemory},
		API: APIConfig{
			Timeout:         Duration(30 * time.Second),
			RetryAttempts:   3,
			BreakerFailures: 5,
			BreakerReset:    Duration(30 * time.Second),
		},
		Observe: ObserveConfig{
			ServiceName: "toolcache",
			Logging:     LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads path, choosing the format by extension (.toml, .yaml, .yml),
// applies it over Default, applies environment overrides and validates.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(strings.NewReader(expanded))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(apiclient.EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache.max_size must be positive, got %d", ErrInvalid, c.Cache.MaxSize))
	}
	if c.Cache.DefaultTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: cache.default_ttl must not be negative", ErrInvalid))
	}
	if c.Cache.MaxTTL < 0 {
		errs = append(errs, fmt.Errorf("%w: cache.max_ttl must not be negative", ErrInvalid))
	}
	if c.Cache.Slot != "" {
		if err := store.ValidateSlot(c.Cache.Slot); err != nil {
			errs = append(errs, fmt.Errorf("%w: cache.slot: %w", ErrInvalid, err))
		}
	}

	drivers := []string{"", store.DriverMemory, store.DriverFile, store.DriverSQLite}
	if !slices.Contains(drivers, c.Store.Driver) {
		errs = append(errs, fmt.Errorf("%w: store.driver %q", ErrInvalid, c.Store.Driver))
	}
	if (c.Store.Driver == store.DriverFile || c.Store.Driver == store.DriverSQLite) && c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("%w: store.path is required for driver %q", ErrInvalid, c.Store.Driver))
	}

	if c.API.Timeout < 0 || c.API.BreakerReset < 0 {
		errs = append(errs, fmt.Errorf("%w: api durations must not be negative", ErrInvalid))
	}
	if c.API.RetryAttempts < 0 || c.API.BreakerFailures < 0 || c.API.RateBurst < 0 || c.API.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: api counts must not be negative", ErrInvalid))
	}

	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policy returns the cache policy. A zero default_ttl yields a policy that
// only stores entries given an explicit TTL.
func (c *Config) Policy() cache.Policy {
	p := cache.DefaultPolicy()
	if c.Cache.DefaultTTL == 0 {
		p = cache.NoCachePolicy()
	}
	p.DefaultTTL = c.Cache.DefaultTTL.Std()
	p.MaxTTL = c.Cache.MaxTTL.Std()
	p.MaxSize = c.Cache.MaxSize
	return p
}

// ClientConfig returns the API client configuration.
func (c *Config) ClientConfig() apiclient.Config {
	return apiclient.Config{
		BaseURL:         c.API.BaseURL,
		Timeout:         c.API.Timeout.Std(),
		RetryAttempts:   c.API.RetryAttempts,
		BreakerFailures: c.API.BreakerFailures,
		BreakerReset:    c.API.BreakerReset.Std(),
		RateLimit:       c.API.RateLimit,
		RateBurst:       c.API.RateBurst,
	}
}

// ObserveConfig returns the telemetry configuration.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     c.Observe.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Enabled,
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Enabled,
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Observe.Logging.Enabled,
			Level:   c.Observe.Logging.Level,
		},
	}
}
