// Package apiclient talks to the remote security tool API.
//
// It knows the API's endpoint catalog (health, telemetry and one endpoint per
// tool, grouped by category) and issues requests through a rate limiter,
// a retry loop with jittered exponential backoff, and a circuit breaker.
// Reads of named endpoints go through an apicache.Client; tool runs are never
// cached.
package apiclient
