// Package storage persists settings, the compact window position and the
// alarm collection.
//
// Drivers:
//   - "memory": process-local, nothing survives a restart
//   - "file": JSON snapshot plus an append-only JSONL journal
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// Mirror wraps any driver with an in-memory copy so reads never touch disk
// and a failing backend degrades to memory-only operation.
package storage
