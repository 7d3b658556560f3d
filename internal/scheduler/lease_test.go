package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLease_SerializesPerCycle(t *testing.T) {
	lease := NewLease()

	assert.True(t, lease.TryAcquire("analysis"))
	assert.False(t, lease.TryAcquire("analysis"))

	// Other cycle types are independent.
	assert.True(t, lease.TryAcquire("fetch"))

	lease.Release("analysis")
	assert.True(t, lease.TryAcquire("analysis"))
}

func TestLease_ConcurrentAcquire(t *testing.T) {
	lease := NewLease()

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lease.TryAcquire("notify:09:00") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
}
