// Package store provides SQLite-backed durable storage for checklist answers.
//
// The store keeps three tables:
//   - Answers: append-only log of every answer ever recorded
//   - Subjects: the latest REM/simulation document per subject
//   - Evaluations: activation snapshots computed from the answer log
//
// # Logical Time
//
// Answers are never updated in place. A new answer to the same measure is a
// new row with a higher seq, and "the current answer" is the row with the
// highest seq. All ordering uses seq INTEGER (logical clock), never
// timestamps, so the answer state as of any evaluation can be rebuilt
// exactly (AnswersAt).
//
// # Deterministic Query Results
//
// Every multi-row query orders by seq ASC, with id COLLATE BINARY as the
// tie-breaker where ids exist, so identical logs read back identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Answer values are stored as RFC 8785 canonical JSON (ir.MarshalCanonical),
// so equal values are byte-equal on disk. Subject documents may hold nulls
// and are stored as sorted-key JSON instead.
package store
