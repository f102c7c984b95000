// Package store provides the SQLite-backed record store for transfer
// records, their terminal-status history, and dependency edges.
//
// Tables:
//   - job_record: one row per submitted pipeline, mutated by the poller
//   - history_record: append-only snapshot per terminal transition
//   - dependent_record: master job to dependent artifact edges
//
// # Connection discipline
//
// Every operation acquires the store's single logical connection under one
// lock, performs its unit of work and releases it. The pool keeps no idle
// connections, so a connection is opened per call and closed afterwards.
// No two store operations interleave, whatever the callers' concurrency.
// Lock acquisition honours the caller's context, so a deadline bounds the
// wait as well as the query.
//
// # Time
//
// Timestamps are stored as Unix milliseconds. The store stamps create and
// update times itself from its clock; callers cannot set them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
