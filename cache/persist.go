package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/store"
)

// persistLocked writes the whole entry map to the configured slot.
// The write is not abandoned when ctx is cancelled.
// Failures are logged and counted; the error is returned for Close.
func (m *Manager) persistLocked(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	snap := make(map[string]snapshotEntry, len(m.items))
	for key, el := range m.items {
		snap[key] = toSnapshot(el.Value.(*node).entry)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		err = fmt.Errorf("cache: encode snapshot: %w", err)
		m.persistFailedLocked(ctx, "encode", err)
		return err
	}
	if err := m.store.Save(ctx, m.slot, data); err != nil {
		err = fmt.Errorf("cache: save snapshot: %w", err)
		m.persistFailedLocked(ctx, "save", err)
		return err
	}
	m.lastPersist = nil
	m.dirty = false
	return nil
}

func (m *Manager) persistOrMarkLocked(ctx context.Context, persist bool) {
	if persist {
		_ = m.persistLocked(ctx)
		return
	}
	m.dirty = true
}

func (m *Manager) persistFailedLocked(ctx context.Context, op string, err error) {
	m.persistErrors++
	m.lastPersist = err
	m.dirty = true
	m.metrics.RecordPersistError(ctx, op)
	m.logger.Warn(ctx, "cache persistence failed",
		observe.F("op", op),
		observe.F("slot", m.slot),
		observe.Err(err),
	)
}

// load restores the non-expired entries of the persisted snapshot.
// Any read or decode failure leaves the manager empty.
func (m *Manager) load(ctx context.Context) {
	if m.store == nil {
		return
	}

	data, err := m.store.Load(ctx, m.slot)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		m.persistFailedLocked(ctx, "load", err)
		return
	}

	var snap map[string]snapshotEntry
	if err := json.Unmarshal(data, &snap); err != nil {
		m.persistFailedLocked(ctx, "decode", fmt.Errorf("cache: decode snapshot: %w", err))
		return
	}

	type loaded struct {
		key   string
		entry Entry
	}
	now := m.now()
	fresh := make([]loaded, 0, len(snap))
	for key, se := range snap {
		if ValidateKey(key) != nil {
			continue
		}
		e := fromSnapshot(se)
		if e.Expired(now) {
			continue
		}
		fresh = append(fresh, loaded{key: key, entry: e})
	}

	// Oldest access first so the most recently used ends up at the front.
	slices.SortFunc(fresh, func(a, b loaded) int {
		return cmp.Or(
			a.entry.LastAccessed.Compare(b.entry.LastAccessed),
			cmp.Compare(a.key, b.key),
		)
	})
	for _, l := range fresh {
		m.items[l.key] = m.recent.PushFront(&node{key: l.key, entry: l.entry})
	}
	m.evictLocked(ctx)

	m.logger.Info(ctx, "restored cache snapshot",
		observe.F("slot", m.slot),
		observe.F("entries", len(m.items)),
		observe.F("dropped", len(snap)-len(fresh)),
	)
}
