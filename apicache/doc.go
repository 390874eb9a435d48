// Package apicache wraps remote fetches with a cache.Cache.
//
// A Client serves fresh cached values without calling the fetch function.
// On a miss it runs the fetch once per key even under concurrent callers,
// stores the result with a five minute TTL and the "api" tag, and returns it.
// If the fetch fails and the cache holds a value for the key, that value is
// served instead and the failure is logged; otherwise the fetch error is
// returned unchanged.
package apicache
