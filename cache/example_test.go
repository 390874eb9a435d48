package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/toolcache/cache"
	"github.com/jonwraymond/toolcache/store"
)

func ExampleNew() {
	ctx := context.Background()
	m := cache.New(ctx, cache.WithStore(store.NewMemory(), cache.DefaultSlot))
	defer m.Close(ctx)

	_ = m.Set(ctx, "greeting", []byte("hello"), cache.WithTTL(time.Minute))

	value, ok := m.Get(ctx, "greeting")
	fmt.Println(string(value), ok)
	// Output:
	// hello true
}

func ExampleManager_InvalidateByTag() {
	ctx := context.Background()
	m := cache.New(ctx)
	defer m.Close(ctx)

	_ = m.Set(ctx, "scan:a", []byte("1"), cache.WithTags("scan"))
	_ = m.Set(ctx, "scan:b", []byte("2"), cache.WithTags("scan"))
	_ = m.Set(ctx, "health", []byte("ok"))

	fmt.Println("removed:", m.InvalidateByTag(ctx, "scan"))
	fmt.Println("remaining:", m.Keys())
	// Output:
	// removed: 2
	// remaining: [health]
}

func ExampleDefaultKeyer_Key() {
	keyer := cache.NewDefaultKeyer()

	k1, _ := keyer.Key("nmap-scan", map[string]any{"target": "10.0.0.1", "ports": "1-1024"})
	k2, _ := keyer.Key("nmap-scan", map[string]any{"ports": "1-1024", "target": "10.0.0.1"})
	fmt.Println(k1 == k2)
	// Output:
	// true
}
