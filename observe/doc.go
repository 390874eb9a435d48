// Package observe provides observability primitives for the cache and its
// fetch path.
//
// It bundles a JSON structured logger, OpenTelemetry tracing and metrics
// wired through configurable exporters, and a Middleware that wraps fetch
// functions with a span, metrics and a log line. The cache, apicache and
// apiclient packages accept the interfaces defined here and default to
// no-op implementations.
package observe
