package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("tenant-a")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, km.Len(), "entries are released when idle")
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock("tenant-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("tenant-b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on tenant-b waited for tenant-a")
	}
}

func TestKeyedMutex_LockContextCancelled(t *testing.T) {
	km := NewKeyedMutex()
	unlock := km.Lock("k")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := km.LockContext(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, km.Len())

	unlock2, err := km.LockContext(context.Background(), "k")
	require.NoError(t, err)
	unlock2()
}

func TestKeyedMutex_DoubleUnlockIsSafe(t *testing.T) {
	km := NewKeyedMutex()
	unlock := km.Lock("k")
	unlock()
	unlock()

	unlock = km.Lock("k")
	unlock()
	assert.Equal(t, 0, km.Len())
}
