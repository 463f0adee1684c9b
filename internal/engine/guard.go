package engine

import "sync/atomic"

// GuardState is the state of the flush guard.
type GuardState int32

const (
	GuardIdle GuardState = iota
	GuardFlushing
)

func (s GuardState) String() string {
	if s == GuardFlushing {
		return "flushing"
	}
	return "idle"
}

// Guard is the single-flight lock over flushes: Idle -> Flushing -> Idle.
//
// There is no timeout. A flush that never completes blocks every later flush
// until the process restarts, which is why every flush path releases the
// guard from a deferred call on the owner.
type Guard struct {
	state atomic.Int32
}

// TryAcquire moves Idle to Flushing. It returns false, with no side effect,
// if a flush is already in progress.
func (g *Guard) TryAcquire() bool {
	return g.state.CompareAndSwap(int32(GuardIdle), int32(GuardFlushing))
}

// Release returns the guard to Idle unconditionally.
func (g *Guard) Release() {
	g.state.Store(int32(GuardIdle))
}

// State returns the current state.
func (g *Guard) State() GuardState {
	return GuardState(g.state.Load())
}
