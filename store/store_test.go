package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFile(filepath.Join(t.TempDir(), "slots"))
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "slots.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": db,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStore_Contract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
			}

			want := []byte(`{"a":{"data":"MQ=="}}`)
			if err := s.Save(ctx, "hexstrike-cache", want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := s.Load(ctx, "hexstrike-cache")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Load() = %q, want %q", got, want)
			}

			// Overwrite replaces the contents.
			if err := s.Save(ctx, "hexstrike-cache", []byte("{}")); err != nil {
				t.Fatalf("Save() overwrite error = %v", err)
			}
			got, _ = s.Load(ctx, "hexstrike-cache")
			if string(got) != "{}" {
				t.Errorf("Load() after overwrite = %q, want {}", got)
			}

			if err := s.Remove(ctx, "hexstrike-cache"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, err := s.Load(ctx, "hexstrike-cache"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Load() after Remove error = %v, want ErrNotFound", err)
			}
			if err := s.Remove(ctx, "hexstrike-cache"); err != nil {
				t.Errorf("Remove() should be idempotent, got %v", err)
			}
		})
	}
}

func TestStore_SlotsAreIndependent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Save(ctx, "one", []byte("1"))
			_ = s.Save(ctx, "two", []byte("2"))
			_ = s.Remove(ctx, "one")

			got, err := s.Load(ctx, "two")
			if err != nil || string(got) != "2" {
				t.Errorf("Load(two) = %q, %v; want 2, nil", got, err)
			}
		})
	}
}

func TestValidateSlot(t *testing.T) {
	tests := []struct {
		slot    string
		wantErr bool
	}{
		{"hexstrike-cache", false},
		{"", true},
		{"   ", true},
		{"a/b", true},
		{`a\b`, true},
		{"..", true},
		{"line\nbreak", true},
		{strings.Repeat("x", MaxSlotLength), false},
		{strings.Repeat("x", MaxSlotLength+1), true},
	}
	for _, tt := range tests {
		err := ValidateSlot(tt.slot)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSlot(%q) = %v, wantErr %v", tt.slot, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidSlot) {
			t.Errorf("ValidateSlot(%q) = %v, want ErrInvalidSlot", tt.slot, err)
		}
	}
}

func TestMemory_Quota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithQuota(10))

	if err := m.Save(ctx, "a", []byte("12345")); err != nil {
		t.Fatalf("Save() within quota error = %v", err)
	}
	if err := m.Save(ctx, "b", []byte("123456")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Save() over quota error = %v, want ErrQuotaExceeded", err)
	}
	// Replacing a slot only counts its new size.
	if err := m.Save(ctx, "a", []byte("1234567890")); err != nil {
		t.Errorf("Save() replacing slot error = %v", err)
	}
}

func TestMemory_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Save(ctx, "s", []byte("abc"))

	got, _ := m.Load(ctx, "s")
	got[0] = 'X'

	again, _ := m.Load(ctx, "s")
	if string(again) != "abc" {
		t.Errorf("stored data mutated through Load result: %q", again)
	}
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	_ = m.Close()
	if err := m.Save(context.Background(), "s", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Save() after Close error = %v, want ErrClosed", err)
	}
}

func TestFile_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := f.Save(ctx, "slot", []byte("data")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(matches) != 1 || filepath.Base(matches[0]) != "slot.json" {
		t.Errorf("directory contents = %v, want only slot.json", matches)
	}
}

func TestFile_CanceledContext(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Save(ctx, "slot", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() with canceled ctx error = %v, want context.Canceled", err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		driver  string
		path    string
		wantErr error
	}{
		{DriverMemory, "", nil},
		{"", "", nil},
		{DriverFile, t.TempDir(), nil},
		{DriverSQLite, ":memory:", nil},
		{"redis", "", ErrUnknownDriver},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := Open(tt.driver, tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Open(%q) error = %v, want %v", tt.driver, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open(%q) error = %v", tt.driver, err)
			}
			_ = s.Close()
		})
	}
}

func TestSQLite_Ping(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
