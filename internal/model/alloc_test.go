package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempIDAllocator_StartsAtMinusOne(t *testing.T) {
	a := NewTempIDAllocator()
	assert.Equal(t, TempID(0), a.Last())
	assert.Equal(t, TempID(-1), a.Next())
	assert.Equal(t, TempID(-2), a.Next())
	assert.Equal(t, TempID(-2), a.Last())
}

func TestTempIDAllocator_StrictlyDecreasingAndDistinct(t *testing.T) {
	a := NewTempIDAllocator()
	seen := make(map[TempID]bool)
	prev := TempID(0)
	for i := 0; i < 1000; i++ {
		id := a.Next()
		require.Less(t, int64(id), int64(prev), "ids must strictly decrease")
		require.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
		prev = id
	}
}

func TestTempIDAllocator_ConcurrentMisuseStillUnique(t *testing.T) {
	// Next is owner-goroutine only by contract, but the atomic counter
	// must not hand out duplicates even if the contract is broken.
	a := NewTempIDAllocator()
	const workers, perWorker = 8, 200

	var mu sync.Mutex
	seen := make(map[TempID]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := a.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}
