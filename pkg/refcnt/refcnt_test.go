package refcnt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterReleaseRunsOnce(t *testing.T) {
	calls := 0
	c := New(func() { calls++ })
	require.Equal(t, int32(1), c.Count())

	c.Acquire()
	c.Release()
	require.Equal(t, 0, calls)

	c.Release()
	require.Equal(t, 1, calls)
	require.Equal(t, int32(0), c.Count())
}

func TestCounterTryAcquireAfterRelease(t *testing.T) {
	c := New(nil)
	require.True(t, c.TryAcquire())
	c.Release()
	c.Release()
	require.False(t, c.TryAcquire())
	require.Panics(t, func() { c.Acquire() })
}

func TestCounterOverRelease(t *testing.T) {
	c := New(nil)
	c.Release()
	require.Panics(t, func() { c.Release() })
}

func TestCounterConcurrent(t *testing.T) {
	released := make(chan struct{})
	c := New(func() { close(released) })

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryAcquire() {
				c.Release()
			}
		}()
	}
	wg.Wait()
	c.Release()
	<-released
}
