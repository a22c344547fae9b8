package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockSerialisesSameKey(t *testing.T) {
	k := New()
	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("conv-1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Zero(t, k.Len())
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	k := New()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	k := New()
	unlock := k.Lock("a")
	unlock()
	unlock()
	assert.Zero(t, k.Len())

	unlock = k.Lock("a")
	assert.Equal(t, 1, k.Len())
	unlock()
}
