// Package store provides durable slot storage for cache snapshots.
//
// A slot is a named blob: the cache manager writes its whole entry map into
// one slot after every mutation and reads it back once at construction. The
// package ships three backends:
//
//   - Memory: process-local map with an optional byte quota
//   - File: one file per slot under a directory, written atomically
//   - SQLite: a single embedded database file (modernc.org/sqlite, no cgo)
//
// Use Open to pick a backend by driver name.
package store
