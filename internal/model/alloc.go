package model

import "sync/atomic"

// TempIDAllocator issues temp ids for new rows.
//
// The first call to Next returns -1, each following call returns one less.
// Values are never reused for the lifetime of the allocator, reconciliation
// included. One allocator is shared by every kind of a session.
//
// Next is meant to be called from the session's owning goroutine only; the
// counter is atomic anyway so a misuse cannot hand out a duplicate.
type TempIDAllocator struct {
	last atomic.Int64
}

// NewTempIDAllocator creates an allocator whose first id is -1.
func NewTempIDAllocator() *TempIDAllocator {
	return &TempIDAllocator{}
}

// Next returns the next unused temp id.
func (a *TempIDAllocator) Next() TempID {
	return TempID(a.last.Add(-1))
}

// Last returns the most recently issued id, or 0 if none was issued.
func (a *TempIDAllocator) Last() TempID {
	return TempID(a.last.Load())
}
