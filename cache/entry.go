package cache

import (
	"slices"
	"time"
)

// Entry is a cached value with its bookkeeping.
type Entry struct {
	Data         []byte
	Timestamp    time.Time // creation or last overwrite
	TTL          time.Duration
	AccessCount  int64
	LastAccessed time.Time
	Tags         []string
}

// Age returns how long ago the entry was stored.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Expired reports whether the entry's age exceeds its TTL.
func (e Entry) Expired(now time.Time) bool {
	return e.Age(now) > e.TTL
}

// HasTag reports whether tag is among the entry's tags.
func (e Entry) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// snapshotEntry is the persisted form of an Entry.
// Times and TTL are milliseconds since the Unix epoch / milliseconds.
type snapshotEntry struct {
	Data         []byte   `json:"data"`
	Timestamp    int64    `json:"timestamp"`
	TTL          int64    `json:"ttl"`
	AccessCount  int64    `json:"accessCount"`
	LastAccessed int64    `json:"lastAccessed"`
	Tags         []string `json:"tags"`
}

func toSnapshot(e Entry) snapshotEntry {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return snapshotEntry{
		Data:         e.Data,
		Timestamp:    e.Timestamp.UnixMilli(),
		TTL:          e.TTL.Milliseconds(),
		AccessCount:  e.AccessCount,
		LastAccessed: e.LastAccessed.UnixMilli(),
		Tags:         tags,
	}
}

func fromSnapshot(s snapshotEntry) Entry {
	var tags []string
	if len(s.Tags) > 0 {
		tags = s.Tags
	}
	return Entry{
		Data:         s.Data,
		Timestamp:    time.UnixMilli(s.Timestamp),
		TTL:          time.Duration(s.TTL) * time.Millisecond,
		AccessCount:  s.AccessCount,
		LastAccessed: time.UnixMilli(s.LastAccessed),
		Tags:         tags,
	}
}

// uniqueTags drops empty and repeated tags, keeping first occurrences in order.
func uniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
