// Package schema resolves the per-kind field schema of the listing grid.
//
// A schema is a list of field descriptors, each mapping a column's display
// key to the storage key used by the pending-change store and the remote
// store, plus the parse and format functions for its type. Schemas are
// written in CUE and compiled once at startup:
//
//	kind: shop: {
//		title: "Shop listings"
//		fields: [
//			{display: "Manager", storage: "manager", type: "text"},
//			{display: "Deposit", storage: "deposit", type: "decimal"},
//		]
//	}
//
// Nothing outside this package looks a column up by display name; callers
// resolve a Field once and carry it.
package schema
