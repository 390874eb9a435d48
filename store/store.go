package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for store operations.
var (
	ErrNotFound      = errors.New("store: slot not found")
	ErrInvalidSlot   = errors.New("store: slot name is invalid")
	ErrQuotaExceeded = errors.New("store: quota exceeded")
	ErrClosed        = errors.New("store: store is closed")
	ErrUnknownDriver = errors.New("store: unknown driver")
)

// MaxSlotLength is the maximum allowed length for a slot name.
const MaxSlotLength = 128

// Store persists named slots.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Load returns ErrNotFound when the slot has never been written or was removed.
// - Save replaces the slot contents atomically; readers never see a partial write.
// - Remove is idempotent.
type Store interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, data []byte) error
	Remove(ctx context.Context, slot string) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open creates a Store for the named driver.
// For DriverFile path is a directory; for DriverSQLite it is the database file.
// DriverMemory ignores path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		return NewFile(path)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// ValidateSlot checks that a slot name is usable by every backend.
func ValidateSlot(slot string) error {
	if strings.TrimSpace(slot) == "" || len(slot) > MaxSlotLength {
		return ErrInvalidSlot
	}
	if strings.ContainsAny(slot, `/\`+"\x00\n\r") || slot == "." || slot == ".." {
		return ErrInvalidSlot
	}
	return nil
}
