// Package cache provides a bounded, time-limited, tag-invalidatable cache
// with durable snapshotting.
//
// A Manager holds entries in memory with a per-entry TTL and evicts the
// least recently used entry whenever an insert pushes it over MaxSize.
// Expired entries are removed lazily on access and by a background sweep
// every SweepInterval. After every mutation the whole entry map is written
// to a single slot of a store.Store; at construction that slot is read back
// and the entries that have not yet expired are restored.
//
// Create one Manager at application start and pass it to consumers:
//
//	st, _ := store.NewFile("/var/lib/toolcache")
//	m := cache.New(ctx,
//	    cache.WithStore(st, cache.DefaultSlot),
//	    cache.WithLogger(logger),
//	)
//	defer m.Close(ctx)
//
//	_ = m.Set(ctx, "scan:10.0.0.1", payload, cache.WithTTL(time.Minute), cache.WithTags("scan"))
//	data, ok := m.Get(ctx, "scan:10.0.0.1")
//	m.InvalidateByTag(ctx, "scan")
package cache
