// Package store provides durable per-user storage for the engagement engine.
//
// Three record kinds live here:
//   - user_messages: raw user-authored messages, written fire-and-forget by the
//     delivery orchestrator and read back to rehydrate a transcript
//   - engagement_flags: one streak/milestone snapshot per user
//   - reaction_tallies: one reaction snapshot per (user, message)
//
// # Write semantics
//
// Messages are append-only: INSERT ... ON CONFLICT(id) DO NOTHING makes a
// retried save harmless. Flags and tallies are snapshots: an upsert replaces
// the previous row, so writes are last-write-wins. Callers derive snapshots
// from the prior snapshot, which makes a duplicated write idempotent.
//
// # Ordering
//
// Message reads are ordered by created_at, then id with binary collation, so
// rehydration is deterministic even for messages sharing a millisecond.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Memory implements the same contract without SQLite for tests and for hosts
// that keep flags in process.
package store
