// Package journal provides a SQLite-backed, append-only trace of engine
// activity.
//
// Every event the engine reports (record created or deleted, field changed,
// derived property invalidated or recomputed, stale read, cycle, watch
// delivery, settle) becomes one row. Rows are grouped by batch: everything
// between two settles of one engine.
//
// # Ordering
//
//   - seq is the engine's logical clock and the primary key
//   - every query orders by seq ASC; wall-clock time is never stored
//
// # Encoding
//
// The detail column holds RFC 8785 canonical JSON produced by
// ir.MarshalCanonical, so identical runs journal byte-identical rows.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - user_version: incremental migrations
package journal
