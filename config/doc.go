// Package config loads the cache, store, API client and telemetry settings
// from a TOML or YAML file.
//
// Files pass through strict environment expansion before parsing: ${VAR}
// must be set, and $$ produces a literal dollar sign. Unknown keys are
// rejected. Durations are written as strings such as "5m" or "30s".
//
//	[cache]
//	max_size = 100
//	default_ttl = "5m"
//
//	[store]
//	driver = "sqlite"
//	path = "${HOME}/.cache/toolcache/cache.db"
//
//	[api]
//	base_url = "https://tools.example.com"
package config
