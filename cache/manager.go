package cache

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/store"
)

// Manager is a bounded LRU cache with per-entry TTL, tags, and snapshot persistence.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	items  map[string]*list.Element
	recent *list.List // front is most recently used

	policy        Policy
	now           func() time.Time
	store         store.Store
	slot          string
	logger        observe.Logger
	metrics       observe.Metrics
	sweepInterval time.Duration

	hits          int64
	misses        int64
	evictions     int64
	expirations   int64
	persistErrors int64
	lastPersist   error
	dirty         bool // memory differs from the last snapshot written

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type node struct {
	key   string
	entry Entry
}

// New creates a Manager, restores the persisted snapshot if a store is
// configured, and starts the expiry sweep. Call Close or Destroy to stop it.
func New(ctx context.Context, opts ...Option) *Manager {
	m := &Manager{
		items:         make(map[string]*list.Element),
		recent:        list.New(),
		policy:        DefaultPolicy(),
		now:           time.Now,
		slot:          DefaultSlot,
		logger:        observe.NopLogger(),
		metrics:       observe.NopMetrics(),
		sweepInterval: SweepInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("cache")

	m.load(ctx)

	if m.sweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop(m.sweepInterval)
	}
	return m
}

// Policy returns the manager's policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Set stores value under key, evicting the least recently used entry if the
// manager is over capacity. Without a TTL under a policy that does not cache
// by default, nothing is stored and any existing entry for key is removed.
// Only key validation errors are returned.
func (m *Manager) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	o := setOptions{persist: true}
	for _, opt := range opts {
		opt(&o)
	}
	ttl := m.policy.EffectiveTTL(o.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	if o.ttl <= 0 && !m.policy.ShouldCache() {
		if el, ok := m.items[key]; ok {
			m.removeLocked(el)
			m.persistOrMarkLocked(ctx, o.persist)
		}
		return nil
	}

	now := m.now()
	e := Entry{
		Data:         slices.Clone(value),
		Timestamp:    now,
		TTL:          ttl,
		LastAccessed: now,
		Tags:         uniqueTags(o.tags),
	}
	if el, ok := m.items[key]; ok {
		el.Value.(*node).entry = e
		m.recent.MoveToFront(el)
	} else {
		m.items[key] = m.recent.PushFront(&node{key: key, entry: e})
	}
	m.evictLocked(ctx)
	m.persistOrMarkLocked(ctx, o.persist)
	return nil
}

// Get returns a copy of the value stored under key.
// An expired entry is removed and reported as a miss.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		m.misses++
		m.metrics.RecordMiss(ctx)
		return nil, false
	}
	n := el.Value.(*node)
	now := m.now()
	if n.entry.Expired(now) {
		m.removeLocked(el)
		m.expirations++
		m.metrics.RecordEviction(ctx, observe.EvictReasonExpired, 1)
		_ = m.persistLocked(ctx)
		m.misses++
		m.metrics.RecordMiss(ctx)
		return nil, false
	}

	n.entry.AccessCount++
	n.entry.LastAccessed = now
	m.recent.MoveToFront(el)
	m.dirty = true
	m.hits++
	m.metrics.RecordHit(ctx)
	return slices.Clone(n.entry.Data), true
}

// Has reports whether a fresh entry exists. It removes an expired entry but
// does not touch access statistics or recency.
func (m *Manager) Has(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false
	}
	if el.Value.(*node).entry.Expired(m.now()) {
		m.removeLocked(el)
		m.expirations++
		m.metrics.RecordEviction(ctx, observe.EvictReasonExpired, 1)
		_ = m.persistLocked(ctx)
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (m *Manager) Delete(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false
	}
	m.removeLocked(el)
	_ = m.persistLocked(ctx)
	return true
}

// Clear removes every entry and the persisted snapshot.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.items)
	m.recent.Init()
	m.dirty = false

	if m.store == nil {
		return
	}
	if err := m.store.Remove(context.WithoutCancel(ctx), m.slot); err != nil {
		m.persistFailedLocked(ctx, "remove", err)
	}
}

// InvalidateByTag removes every entry carrying tag and returns how many were removed.
func (m *Manager) InvalidateByTag(ctx context.Context, tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.recent.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*node).entry.HasTag(tag) {
			m.removeLocked(el)
			removed++
		}
		el = next
	}
	if removed > 0 {
		m.metrics.RecordEviction(ctx, observe.EvictReasonInvalidated, removed)
		m.logger.Debug(ctx, "invalidated by tag",
			observe.F("tag", tag),
			observe.F("removed", removed),
		)
		_ = m.persistLocked(ctx)
	}
	return removed
}

// Keys returns the cached keys from most to least recently used.
// Expired entries not yet swept are included.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.items))
	for el := m.recent.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*node).key)
	}
	return keys
}

// Len returns the number of entries, including expired ones not yet swept.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the expiry sweep and writes a final snapshot if anything
// changed since the last one. The persisted state is kept.
func (m *Manager) Close(ctx context.Context) error {
	m.stopSweep()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return nil
	}
	return m.persistLocked(ctx)
}

// Destroy stops the expiry sweep and removes every entry and the persisted
// snapshot. The Manager must not be used afterwards.
func (m *Manager) Destroy(ctx context.Context) {
	m.stopSweep()
	m.Clear(ctx)
}

func (m *Manager) stopSweep() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *Manager) evictLocked(ctx context.Context) {
	if m.policy.MaxSize <= 0 {
		return
	}
	for len(m.items) > m.policy.MaxSize {
		el := m.recent.Back()
		if el == nil {
			return
		}
		m.logger.Debug(ctx, "evicted least recently used entry",
			observe.F("key", el.Value.(*node).key),
		)
		m.removeLocked(el)
		m.evictions++
		m.metrics.RecordEviction(ctx, observe.EvictReasonCapacity, 1)
	}
}

func (m *Manager) removeLocked(el *list.Element) {
	m.recent.Remove(el)
	delete(m.items, el.Value.(*node).key)
}
