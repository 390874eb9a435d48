package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	slotDirPerm  = 0o750 // rwxr-x---
	slotFilePerm = 0o600 // rw-------
	slotFileExt  = ".json"
)

// File stores each slot as a file under a base directory.
// Writes go to a temp file in the same directory and are renamed into place.
type File struct {
	baseDir string

	mu     sync.Mutex
	closed bool
}

// NewFile creates a file-backed store rooted at baseDir, creating it if needed.
func NewFile(baseDir string) (*File, error) {
	if baseDir == "" {
		return nil, errors.New("store: file store requires a directory")
	}
	if err := os.MkdirAll(baseDir, slotDirPerm); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	return &File{baseDir: baseDir}, nil
}

// Dir returns the base directory.
func (f *File) Dir() string { return f.baseDir }

func (f *File) path(slot string) string {
	return filepath.Join(f.baseDir, slot+slotFileExt)
}

// Load reads the slot file.
func (f *File) Load(ctx context.Context, slot string) ([]byte, error) {
	if err := f.check(ctx, slot); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(f.path(slot)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read slot %q: %w", slot, err)
	}
	return data, nil
}

// Save writes the slot file atomically.
func (f *File) Save(ctx context.Context, slot string, data []byte) error {
	if err := f.check(ctx, slot); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.baseDir, "."+slot+"-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("store: write slot %q: %w", slot, err)
	}
	if err := tmp.Chmod(slotFilePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("store: chmod slot %q: %w", slot, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("store: close slot %q: %w", slot, err)
	}
	if err := os.Rename(tmpName, f.path(slot)); err != nil {
		cleanup()
		return fmt.Errorf("store: rename slot %q: %w", slot, err)
	}
	return nil
}

// Remove deletes the slot file. Idempotent.
func (f *File) Remove(ctx context.Context, slot string) error {
	if err := f.check(ctx, slot); err != nil {
		return err
	}
	err := os.Remove(f.path(slot))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: remove slot %q: %w", slot, err)
	}
	return nil
}

// Close marks the store closed. Files are left on disk.
func (f *File) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *File) check(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return nil
}

var _ Store = (*File)(nil)
