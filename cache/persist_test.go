package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolcache/observe"
	"github.com/jonwraymond/toolcache/store"
)

func TestPersist_RoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	st := store.NewMemory()

	m1 := New(ctx, WithStore(st, ""), WithClock(clk.Now), withSweepInterval(0))
	_ = m1.Set(ctx, "keep", []byte("payload"), WithTTL(time.Hour), WithTags("api"))
	_ = m1.Set(ctx, "short", []byte("gone"), WithTTL(100*time.Millisecond))
	_, _ = m1.Get(ctx, "keep")
	_, _ = m1.Get(ctx, "keep")
	if err := m1.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	clk.Advance(150 * time.Millisecond)
	m2 := newTestManager(t, clk, WithStore(st, ""))

	if diff := cmp.Diff([]string{"keep"}, m2.Keys()); diff != "" {
		t.Errorf("restored Keys() mismatch (-want +got):\n%s", diff)
	}
	if s := m2.Stats(); s.HitRate != 2 {
		t.Errorf("restored HitRate = %v, want 2 (access count preserved)", s.HitRate)
	}
	got, ok := m2.Get(ctx, "keep")
	if !ok || string(got) != "payload" {
		t.Errorf("Get(keep) = (%q, %v), want (\"payload\", true)", got, ok)
	}
	if n := m2.InvalidateByTag(ctx, "api"); n != 1 {
		t.Errorf("restored tags: InvalidateByTag(api) = %d, want 1", n)
	}
}

func TestPersist_SnapshotFormat(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	st := store.NewMemory()
	m := newTestManager(t, clk, WithStore(st, "custom-slot"))

	_ = m.Set(ctx, "k", []byte("hi"), WithTTL(90*time.Second), WithTags("t1"))

	raw, err := st.Load(ctx, "custom-slot")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var got map[string]map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	want := map[string]map[string]any{
		"k": {
			"data":         "aGk=",
			"timestamp":    float64(clk.Now().UnixMilli()),
			"ttl":          float64(90000),
			"accessCount":  float64(0),
			"lastAccessed": float64(clk.Now().UnixMilli()),
			"tags":         []any{"t1"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestPersist_RestoresRecencyOrder(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	st := store.NewMemory()

	m1 := New(ctx, WithStore(st, ""), WithClock(clk.Now), withSweepInterval(0))
	for _, k := range []string{"a", "b", "c"} {
		_ = m1.Set(ctx, k, []byte(k))
		clk.Advance(time.Millisecond)
	}
	_, _ = m1.Get(ctx, "a")
	_ = m1.Close(ctx)

	m2 := newTestManager(t, clk, WithStore(st, ""))
	if diff := cmp.Diff([]string{"a", "c", "b"}, m2.Keys()); diff != "" {
		t.Errorf("restored order mismatch (-want +got):\n%s", diff)
	}
}

func TestPersist_LoadRespectsMaxSize(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	st := store.NewMemory()

	m1 := New(ctx, WithStore(st, ""), WithClock(clk.Now), withSweepInterval(0))
	for i := range 5 {
		_ = m1.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"))
		clk.Advance(time.Millisecond)
	}
	_ = m1.Close(ctx)

	m2 := newTestManager(t, clk, WithStore(st, ""), WithMaxSize(3))
	if diff := cmp.Diff([]string{"k4", "k3", "k2"}, m2.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestPersist_CorruptSnapshotIsColdStart(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.Save(ctx, DefaultSlot, []byte("{not json")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var buf bytes.Buffer
	m := newTestManager(t, newFakeClock(),
		WithStore(st, ""),
		WithLogger(observe.NewLoggerWithWriter("debug", &buf)),
	)
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if s := m.Stats(); s.PersistErrors != 1 {
		t.Errorf("PersistErrors = %d, want 1", s.PersistErrors)
	}
	if !strings.Contains(buf.String(), "cache persistence failed") {
		t.Errorf("expected warning in log, got %q", buf.String())
	}
}

func TestPersist_QuotaFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	rec := newRecordingMetrics()
	st := store.NewMemory(store.WithQuota(16))
	m := newTestManager(t, newFakeClock(), WithStore(st, ""), WithMetrics(rec))

	if err := m.Set(ctx, "big", bytes.Repeat([]byte("x"), 256)); err != nil {
		t.Fatalf("Set should not surface persistence errors, got %v", err)
	}
	if _, ok := m.Get(ctx, "big"); !ok {
		t.Error("entry should remain in memory after a failed snapshot")
	}
	if err := m.LastPersistError(); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Errorf("LastPersistError() = %v, want %v", err, store.ErrQuotaExceeded)
	}
	if got := rec.persist["save"]; got != 1 {
		t.Errorf("persist error metric = %d, want 1", got)
	}

	m.Delete(ctx, "big")
	if err := m.LastPersistError(); err != nil {
		t.Errorf("LastPersistError() after successful save = %v, want nil", err)
	}
}

func TestPersist_WithoutPersist(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := newTestManager(t, newFakeClock(), WithStore(st, ""))

	_ = m.Set(ctx, "k", []byte("v"), WithoutPersist())
	if _, err := st.Load(ctx, DefaultSlot); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load() error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestPersist_ClearRemovesSlot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := newTestManager(t, newFakeClock(), WithStore(st, ""))

	_ = m.Set(ctx, "k", []byte("v"))
	m.Clear(ctx)

	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if _, err := st.Load(ctx, DefaultSlot); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load() error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestPersist_Destroy(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(ctx, WithStore(st, ""), withSweepInterval(time.Millisecond))

	_ = m.Set(ctx, "k", []byte("v"))
	m.Destroy(ctx)

	if _, err := st.Load(ctx, DefaultSlot); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load() error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestPersist_FileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	defer st.Close()

	m1 := New(ctx, WithStore(st, ""), WithClock(clk.Now), withSweepInterval(0))
	_ = m1.Set(ctx, "k", []byte("v"))
	_ = m1.Close(ctx)

	m2 := newTestManager(t, clk, WithStore(st, ""))
	if got, ok := m2.Get(ctx, "k"); !ok || string(got) != "v" {
		t.Errorf("Get(k) = (%q, %v), want (\"v\", true)", got, ok)
	}
}

func TestPersist_CancelledContextStillPersists(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	defer st.Close()

	clk := newFakeClock()
	m1 := New(ctx, WithStore(st, ""), WithClock(clk.Now), withSweepInterval(0))
	_ = m1.Set(ctx, "k", []byte("v"))
	_ = m1.Set(ctx, "other", []byte("v"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if !m1.Delete(cancelled, "k") {
		t.Fatal("Delete() = false, want true")
	}
	if err := m1.LastPersistError(); err != nil {
		t.Fatalf("LastPersistError() = %v, want nil", err)
	}
	_ = m1.Close(ctx)

	m2 := newTestManager(t, clk, WithStore(st, ""))
	if m2.Has(ctx, "k") {
		t.Error("deleted key came back after reload")
	}
	if !m2.Has(ctx, "other") {
		t.Error("surviving key missing after reload")
	}

	m2.Clear(cancelled)
	if _, err := st.Load(ctx, DefaultSlot); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load() after Clear error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestPersist_CloseFlushesPendingChanges(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(ctx, WithStore(st, ""), withSweepInterval(0))

	_ = m.Set(ctx, "k", []byte("v"), WithoutPersist())
	if _, err := st.Load(ctx, DefaultSlot); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Load() before Close error = %v, want %v", err, store.ErrNotFound)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := st.Load(ctx, DefaultSlot); err != nil {
		t.Errorf("Load() after Close error = %v", err)
	}
}

func TestPersist_CloseAfterClearKeepsSlotRemoved(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(ctx, WithStore(st, ""), withSweepInterval(0))

	_ = m.Set(ctx, "k", []byte("v"))
	_, _ = m.Get(ctx, "k")
	m.Clear(ctx)
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := st.Load(ctx, DefaultSlot); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load() error = %v, want %v", err, store.ErrNotFound)
	}
}
