// Package engine implements the optimistic local-edit sync engine.
//
// A Session owns the grid, the pending change store, and the temp id
// allocator. Edits route into the pending store; a FlushScheduler turns timer
// ticks and manual saves into flushes; the SaveOrchestrator snapshots one
// kind's pending set and sends it to the remote store on a worker goroutine;
// the Reconciler applies the acknowledgement back onto pending state and
// the grid's visual markers.
//
// ARCHITECTURE:
//
// Single-Owner Event Loop:
// All grid and pending state is mutated by exactly one goroutine, the owner.
// Workers never touch that state. They post a completion Event onto the
// owner's FIFO queue, and the owner applies it between other operations, so
// a result is never applied in the middle of an edit.
//
// Event Processing Flow:
//  1. Edits, ticks, and worker completions are enqueued (Post, RunTicker, workers)
//  2. Session.Run (or Drain/Settle in tests) dequeues events one at a time
//  3. Completions run the Reconciler, then release the Guard
//
// Single-Flight:
// At most one batch is in flight across all kinds. The Guard is acquired
// before a snapshot is taken and released on the owner once the result has
// been applied, on every path including worker panics and timeouts. A flush
// is never cancelled once its network call has started; the per-call timeout
// is the only bound.
//
// Diff-Based Clearing:
// A successful result clears only what the sent batch carried. Field writes
// made after the snapshot carry newer revisions and stay pending.
package engine
