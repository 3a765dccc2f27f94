// Package refcnt provides an atomic reference counter that runs a release
// callback when the last reference is dropped.
package refcnt

import (
	"fmt"
	"sync/atomic"
)

// ReleaseFn is invoked exactly once, when the count drops to zero.
type ReleaseFn func()

// Counter is a reference counter that starts at one.
type Counter struct {
	n       atomic.Int32
	release ReleaseFn
}

// New creates a Counter holding a single reference.
func New(release ReleaseFn) *Counter {
	c := &Counter{release: release}
	c.n.Store(1)
	return c
}

// Acquire adds a reference. It panics if the object was already released.
func (c *Counter) Acquire() {
	if n := c.n.Add(1); n <= 1 {
		panic(fmt.Errorf("refcnt: acquire on released object (count %d)", n))
	}
}

// TryAcquire adds a reference unless the count already reached zero.
// Callers racing with the final Release use it to avoid resurrecting an
// object whose release callback has run or is about to run.
func (c *Counter) TryAcquire() bool {
	for {
		n := c.n.Load()
		if n <= 0 {
			return false
		}
		if c.n.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference and runs the release callback on the last one.
func (c *Counter) Release() {
	n := c.n.Add(-1)
	if n > 0 {
		return
	}
	if n == 0 {
		if c.release != nil {
			c.release()
		}
		return
	}
	panic(fmt.Errorf("refcnt: invalid count %d", n))
}

// Count returns the current number of references.
func (c *Counter) Count() int32 {
	return c.n.Load()
}
