// Package store provides SQLite-backed collections of JSON records.
//
// Each collection lives in its own table named "collection:<name>" with
// two columns:
//
//	id    TEXT PRIMARY KEY
//	value TEXT NOT NULL  -- value.Marshal output
//
// Tables are created on first write and dropped whole by Drop. A missing
// table is reported as ErrCollectionNotFound by Get, which lets callers
// tell "no such collection" apart from "no such record".
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema changes are versioned with PRAGMA user_version.
package store
