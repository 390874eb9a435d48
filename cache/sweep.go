package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/toolcache/observe"
)

// SweepInterval is how often expired entries are removed in the background.
const SweepInterval = 60 * time.Second

// Sweep removes every expired entry and returns how many were removed.
// The snapshot is written once if anything was removed.
func (m *Manager) Sweep(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for el := m.recent.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*node).entry.Expired(now) {
			m.removeLocked(el)
			removed++
		}
		el = next
	}
	if removed == 0 {
		return 0
	}

	m.expirations += int64(removed)
	m.metrics.RecordEviction(ctx, observe.EvictReasonExpired, removed)
	m.logger.Debug(ctx, "swept expired entries", observe.F("removed", removed))
	_ = m.persistLocked(ctx)
	return removed
}

func (m *Manager) sweepLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.Sweep(context.Background())
		}
	}
}
