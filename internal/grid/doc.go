// Package grid is the in-memory model behind the listing grid.
//
// A Table holds the rows of one kind in display order, each with its field
// values, its underlying listing status, and the visual state that overlays
// pending sync markers on top of that status. Rendering is out of scope:
// StyleFor maps a (visual state, status) pair to colors so the mapping can be
// tested without a widget toolkit.
//
// Like the pending store, a Grid is owned by a single goroutine and does no
// locking.
package grid
