// Package sync provides synchronization primitives missing from the
// standard library.
package sync

import (
	"sync"
	"sync/atomic"
)

// ResettableOnce runs a function once until it is reset. The client uses
// it for Close, which must run once per connection across reconnects.
//
// The zero value is ready to use. ResettableOnce is safe for concurrent use.
type ResettableOnce struct {
	mu   sync.Mutex
	done atomic.Bool
}

// Do calls f unless a call has completed since the last Reset. Concurrent
// callers wait for the running f and then return without calling it.
func (o *ResettableOnce) Do(f func()) {
	if o.done.Load() {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done.Load() {
		return
	}
	defer o.done.Store(true)
	f()
}

// DoErr is Do for a function that can fail. A failed call does not count,
// so the next DoErr tries again.
func (o *ResettableOnce) DoErr(f func() error) error {
	if o.done.Load() {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done.Load() {
		return nil
	}
	if err := f(); err != nil {
		return err
	}
	o.done.Store(true)
	return nil
}

// Reset arms the next Do. It waits for a running Do to finish.
func (o *ResettableOnce) Reset() {
	o.mu.Lock()
	o.done.Store(false)
	o.mu.Unlock()
}

// Done reports whether a call completed since the last Reset.
func (o *ResettableOnce) Done() bool {
	return o.done.Load()
}
