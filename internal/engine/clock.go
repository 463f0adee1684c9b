package engine

import "time"

// Clock supplies wall time to the scheduler's cooldown and the status line.
//
// Tests substitute a manual clock so cooldown windows can be crossed without
// sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
