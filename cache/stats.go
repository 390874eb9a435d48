package cache

// Stats is a point-in-time view of a Manager.
type Stats struct {
	Size           int
	MaxSize        int
	Expired        int     // entries past their TTL but not yet removed
	TotalSizeBytes int     // sum of payload lengths
	HitRate        float64 // total access count divided by Size; 0 when empty

	Hits          int64
	Misses        int64
	Evictions     int64 // capacity evictions
	Expirations   int64
	PersistErrors int64
}

// Stats computes current statistics. It does not modify the cache.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := Stats{
		Size:          len(m.items),
		MaxSize:       m.policy.MaxSize,
		Hits:          m.hits,
		Misses:        m.misses,
		Evictions:     m.evictions,
		Expirations:   m.expirations,
		PersistErrors: m.persistErrors,
	}
	var accesses int64
	for _, el := range m.items {
		e := el.Value.(*node).entry
		if e.Expired(now) {
			s.Expired++
		}
		s.TotalSizeBytes += len(e.Data)
		accesses += e.AccessCount
	}
	if s.Size > 0 {
		s.HitRate = float64(accesses) / float64(s.Size)
	}
	return s
}

// LastPersistError returns the most recent persistence failure, or nil if
// the last snapshot write succeeded.
func (m *Manager) LastPersistError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPersist
}
