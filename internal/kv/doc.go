// Package kv is the ordered key-value layer records are persisted in.
//
// Two engines implement Store:
//   - Pebble: LSM store, the default. An empty path opens it in memory.
//   - SQLite: a single WITHOUT ROWID table ordered by its BLOB key.
//
// Both order keys bytewise, so callers that encode keys order-preservingly
// get range scans in their natural order.
//
// # Create-if-absent
//
// Create writes a key only when it holds no value. It never blocks on another
// writer: when the key is held it fails with ErrLocked, which callers treat
// as transient contention and retry. ErrExists is terminal.
package kv
