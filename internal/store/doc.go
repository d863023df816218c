// Package store provides SQLite-backed durable storage for sampling points.
//
// The store keeps one configpoints row per trial attempt and implements:
//   - Inserts with bounded retry on transient SQLite failures (BUSY/LOCKED)
//   - Typed reads and aggregates that exclude deactivated points by default
//   - A counter batch that defers usecount increments until commit
//   - A transactional Update boundary used by weight propagation
//   - Exact-match deletion of superseded ghost lines
//
// # Critical Patterns
//
// Single Writer
//   - Every structural mutation (insert, flush, weight update) holds Store.mu
//   - Writes use a single read-write connection; transactions BEGIN IMMEDIATE
//   - Reads use a separate read-only pool, so open readers never hold up a writer
//
// Deterministic Ordering
//   - Listing queries ORDER BY seq ASC, id ASC
//   - seq is a logical insertion marker, never a timestamp
//
// Read-After-Write for usecount
//   - Reads that depend on usecount flush the counter batch first
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: configurable, 5000ms by default
package store
