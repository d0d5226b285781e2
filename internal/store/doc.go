// Package store provides SQLite-backed storage for room events and
// resolution results.
//
// The store holds:
//   - Events: PDUs keyed by event ID, append-only and idempotent on write
//   - Resolutions: one record per resolution run, with the state hash
//   - Resolution state: the slot to event mapping of each resolution
//
// # Ordering
//
// Events are ordered by seq, the insertion sequence, with event_id as a
// tiebreaker (ORDER BY seq ASC, event_id COLLATE BINARY ASC). Timestamps are
// never used for ordering since they are set by remote servers.
//
// # Snapshots
//
// Snapshot opens a read-only transaction that implements stateres.Fetcher,
// so one resolution sees a consistent view of the store even while events
// are being imported. Close the snapshot before writing.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
