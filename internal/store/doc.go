// Package store provides SQLite-backed storage for the listing store server.
//
// Tables:
//   - listings: one row per listing, with its kind, bucket, status, and
//     fields as a JSON object
//   - applied_requests: the response of every applied save or status
//     request, keyed by request id
//
// # Critical Patterns
//
// Request-Level Idempotency
//   - A batch is applied in one transaction together with its
//     applied_requests row
//   - A request id seen before returns the stored response without touching
//     listings, so a client retrying after a timeout never applies twice
//
// All-Or-Nothing Batches
//   - Any failure inside a batch (unknown id, duplicate listing number)
//     rolls the whole batch back
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
