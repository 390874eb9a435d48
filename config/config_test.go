package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolcache/apiclient"
	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	want := cache.Policy{DefaultTTL: 5 * time.Minute, MaxSize: 100}
	if diff := cmp.Diff(want, cfg.Policy()); diff != "" {
		t.Errorf("Policy() mismatch (-want +got):\n%s", diff)
	}
	if cfg.Cache.Slot != cache.DefaultSlot {
		t.Errorf("Cache.Slot = %q, want %q", cfg.Cache.Slot, cache.DefaultSlot)
	}
}

func TestLoad_TOML(t *testing.T) {
	t.Setenv(apiclient.EnvBaseURL, "")
	t.Setenv("TOOLCACHE_DIR", "/var/lib/toolcache")
	path := writeFile(t, "toolcache.toml", `
[cache]
max_size = 250
default_ttl = "2m"
max_ttl = "1h"
slot = "scans"

[store]
driver = "sqlite"
path = "${TOOLCACHE_DIR}/cache.db"

[api]
base_url = "https://tools.example.com"
timeout = "10s"
retry_attempts = 4
rate_limit = 2.5
rate_burst = 5

[observe]
service_name = "cachectl"

[observe.logging]
enabled = true
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Cache = CacheConfig{
		MaxSize:    250,
		DefaultTTL: Duration(2 * time.Minute),
		MaxTTL:     Duration(time.Hour),
		Slot:       "scans",
	}
	want.Store = StoreConfig{Driver: store.DriverSQLite, Path: "/var/lib/toolcache/cache.db"}
	want.API.BaseURL = "https://tools.example.com"
	want.API.Timeout = Duration(10 * time.Second)
	want.API.RetryAttempts = 4
	want.API.RateLimit = 2.5
	want.API.RateBurst = 5
	want.Observe.ServiceName = "cachectl"
	want.Observe.Logging.Level = "debug"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv(apiclient.EnvBaseURL, "")
	path := writeFile(t, "toolcache.yaml", `
cache:
  max_size: 10
  default_ttl: 45s
store:
  driver: file
  path: /tmp/toolcache
observe:
  tracing:
    enabled: true
    exporter: stdout
    sample_pct: 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.MaxSize != 10 || cfg.Cache.DefaultTTL.Std() != 45*time.Second {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Store.Driver != store.DriverFile {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	obs := cfg.ObserveConfig()
	if !obs.Tracing.Enabled || obs.Tracing.Exporter != "stdout" || obs.Tracing.SamplePct != 0.5 {
		t.Errorf("ObserveConfig().Tracing = %+v", obs.Tracing)
	}
}

func TestLoad_EmptyYAMLUsesDefaults(t *testing.T) {
	t.Setenv(apiclient.EnvBaseURL, "")
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(apiclient.EnvBaseURL, "http://override.local")
	cfg, err := Load(writeFile(t, "c.toml", "[api]\nbase_url = \"http://file.local\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "http://override.local" {
		t.Errorf("API.BaseURL = %q, want env override", cfg.API.BaseURL)
	}
	if got := cfg.ClientConfig().BaseURL; got != "http://override.local" {
		t.Errorf("ClientConfig().BaseURL = %q", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(apiclient.EnvBaseURL, "")
	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"missing env", "c.toml", "[store]\npath = \"${TOOLCACHE_UNSET_VAR}\"\n", ErrMissingEnv},
		{"unsupported format", "c.json", "{}", ErrUnsupportedFormat},
		{"invalid max size", "c.toml", "[cache]\nmax_size = 0\n", ErrInvalid},
		{"negative default ttl", "c.toml", "[cache]\ndefault_ttl = \"-1m\"\n", ErrInvalid},
		{"unknown driver", "c.yaml", "store:\n  driver: redis\n", ErrInvalid},
		{"file driver needs path", "c.toml", "[store]\ndriver = \"file\"\n", ErrInvalid},
		{"bad slot", "c.toml", "[cache]\nslot = \"../x\"\n", ErrInvalid},
		{"bad exporter", "c.toml", "[observe.metrics]\nenabled = true\nexporter = \"graphite\"\n", observe.ErrInvalidMetricsExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_ZeroDefaultTTL(t *testing.T) {
	t.Setenv(apiclient.EnvBaseURL, "")
	cfg, err := Load(writeFile(t, "c.toml", "[cache]\ndefault_ttl = \"0s\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p := cfg.Policy()
	if p.ShouldCache() {
		t.Error("Policy().ShouldCache() = true, want false for default_ttl = 0")
	}
	if p.MaxSize != cache.DefaultMaxSize {
		t.Errorf("Policy().MaxSize = %d, want %d", p.MaxSize, cache.DefaultMaxSize)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	for name, content := range map[string]string{
		"c.toml": "[cache]\nmax_sise = 5\n",
		"c.yaml": "cache:\n  max_sise: 5\n",
	} {
		if _, err := Load(writeFile(t, name, content)); err == nil {
			t.Errorf("Load(%s) should reject unknown key", name)
		}
	}
}

func TestLoad_BadDuration(t *testing.T) {
	if _, err := Load(writeFile(t, "c.toml", "[cache]\ndefault_ttl = \"soon\"\n")); err == nil {
		t.Error("Load() should reject an unparseable duration")
	}
	if _, err := Load(writeFile(t, "c.yaml", "cache:\n  default_ttl: [1]\n")); err == nil {
		t.Error("Load() should reject a non-scalar duration")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want %v", err, os.ErrNotExist)
	}
}
