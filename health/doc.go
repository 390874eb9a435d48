// Package health reports whether the cache and the systems it depends on
// are working.
//
// Checkers exist for the cache manager itself (fill level and persistence
// failures), for a durable store (a save/load/remove round trip on a probe
// slot), and for the remote tool API (its /health endpoint). An Aggregator
// runs registered checkers in parallel under a timeout and folds their
// results into one status, which the HTTP handlers expose:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewCacheChecker(manager, health.CacheCheckerConfig{}))
//	agg.Register(health.NewStoreChecker(st))
//	agg.Register(health.NewAPIChecker(client))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
package health
