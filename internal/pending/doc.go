// Package pending tracks local edits that the remote store has not
// acknowledged yet.
//
// Per kind, a PendingSet holds three change sets:
//   - added: temp ids of rows never sent successfully
//   - updated: persisted id -> changed fields (last write wins per field)
//   - deleted: persisted ids marked for deletion
//
// The store holds identities and field deltas only, never grid records.
// It is pure data with no I/O and no locking: only the session's owning
// goroutine may call it.
//
// # Invariants
//
//   - An id in deleted is never a key in updated.
//   - A temp id deleted before it was sent leaves no trace (no network
//     traffic is ever produced for it).
//   - Snapshot never clears anything. The reconciler removes exactly what a
//     confirmed batch carried (Confirm*), so edits made while a batch is in
//     flight survive its acknowledgement.
package pending
