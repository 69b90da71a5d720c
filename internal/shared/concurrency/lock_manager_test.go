package concurrency

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockManager_SameKeySameMutex(t *testing.T) {
	lm := NewLockManager()

	assert.Same(t, lm.GetLock("a"), lm.GetLock("a"))
	assert.NotSame(t, lm.GetLock("a"), lm.GetLock("b"))
}

func TestLockManager_WithLockSerializes(t *testing.T) {
	lm := NewLockManager()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lm.WithLock("jackpot-1", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestLockManager_Remove(t *testing.T) {
	lm := NewLockManager()
	first := lm.GetLock("a")
	lm.GetLock("b")
	assert.Equal(t, 2, lm.Len())

	lm.Remove("a")
	assert.Equal(t, 1, lm.Len())
	assert.NotSame(t, first, lm.GetLock("a"))

	lm.Remove("missing")
	assert.Equal(t, 2, lm.Len())
}
