package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store.
//
// With a quota set, Save fails with ErrQuotaExceeded when the total size of
// all slots would exceed it, the way browser storage rejects large writes.
type Memory struct {
	mu     sync.RWMutex
	slots  map[string][]byte
	quota  int
	closed bool
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithQuota caps the total bytes held across all slots. Zero means unlimited.
func WithQuota(bytes int) MemoryOption {
	return func(m *Memory) { m.quota = bytes }
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{slots: make(map[string][]byte)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns a copy of the slot contents.
func (m *Memory) Load(_ context.Context, slot string) ([]byte, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	data, ok := m.slots[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of data under slot.
func (m *Memory) Save(_ context.Context, slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.quota > 0 {
		used := 0
		for name, v := range m.slots {
			if name != slot {
				used += len(v)
			}
		}
		if used+len(data) > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.slots[slot] = append([]byte(nil), data...)
	return nil
}

// Remove deletes the slot. Idempotent.
func (m *Memory) Remove(_ context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.slots, slot)
	return nil
}

// Close releases the store. Further calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.slots = nil
	m.mu.Unlock()
	return nil
}

var _ Store = (*Memory)(nil)
