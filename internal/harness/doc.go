// Package harness runs scripted editing sessions against a fake remote store
// and records what happened as a line-based trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: temp_row_round_trip
//	description: "A new row is saved and takes its persisted id"
//	seed:
//	  - kind: shop
//	    id: 50
//	    fields: {listing_no: S-50, manager: Park}
//	steps:
//	  - add: {kind: shop, ref: a, fields: {listing_no: S-1}}
//	  - edit: {kind: shop, row: a, field: Manager, value: Kim}
//	  - save: shop
//	  - expect:
//	      rows:
//	        - {kind: shop, row: a, visual: clean, fields: {manager: Kim}}
//	      pending:
//	        - {kind: shop, added: 0}
//
// Rows are named by ref (given at add or seed time) or by persisted id. A
// ref follows its row when the store confirms it under a persisted id.
//
// # Steps
//
// Each step does exactly one thing:
//
//   - add, edit, bulk, delete: route edits through the session
//   - save: manual save of one kind
//   - tick: one scheduler evaluation
//   - status: move persisted rows to a bucket
//   - advance: move the manual clock forward
//   - hold, release: keep remote calls in flight, then let them finish
//   - fail: script the next save to fail with a message
//   - expect: check grid, pending store, guard and status line
//
// A step that is expected to fail names the error code in error.
//
// # Determinism
//
// The session runs on a ManualClock with a fixed session id, and the
// harness drives the owner loop itself: after every step it settles the
// session unless calls are held. Traces are therefore byte-stable and are
// compared against golden files in testdata/golden.
package harness
