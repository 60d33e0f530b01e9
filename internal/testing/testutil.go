// Package testing provides test utilities shared by the inventory packages.
//
// It offers the error channel pattern for tests that start goroutines, and
// fixtures that open every store gateway.
package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Error Channel Pattern
// =============================================================================

// GoroutineTest collects errors from goroutines started by a test.
//
// t.Fatal and t.FailNow call runtime.Goexit, which only ends the calling
// goroutine. Goroutines started through Go return an error instead; Wait
// reports all of them on the test goroutine.
//
//	gt := testutil.NewGoroutineTest(t)
//	for _, id := range ids {
//	    gt.Go(func() error {
//	        _, err := mgr.Storages.Get(ctx, id, 1)
//	        return err
//	    })
//	}
//	gt.Wait()
type GoroutineTest struct {
	t      *testing.T
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewGoroutineTest creates a new GoroutineTest helper.
func NewGoroutineTest(t *testing.T) *GoroutineTest {
	ctx, cancel := context.WithCancel(context.Background())
	return &GoroutineTest{t: t, ctx: ctx, cancel: cancel}
}

// NewGoroutineTestWithTimeout creates a GoroutineTest whose context expires
// after timeout.
func NewGoroutineTestWithTimeout(t *testing.T, timeout time.Duration) *GoroutineTest {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &GoroutineTest{t: t, ctx: ctx, cancel: cancel}
}

func (gt *GoroutineTest) record(err error) {
	gt.mu.Lock()
	gt.errs = append(gt.errs, err)
	gt.mu.Unlock()
}

// Go runs fn in a goroutine and records its error.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(); err != nil {
			gt.record(err)
		}
	}()
}

// GoWithContext runs fn with the test context. Errors returned after the
// context ended are dropped.
func (gt *GoroutineTest) GoWithContext(fn func(ctx context.Context) error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(gt.ctx); err != nil && gt.ctx.Err() == nil {
			gt.record(err)
		}
	}()
}

// Wait waits for all goroutines and fails the test if any returned an error.
func (gt *GoroutineTest) Wait() {
	gt.t.Helper()
	gt.wg.Wait()
	gt.cancel()

	gt.mu.Lock()
	errs := gt.errs
	gt.mu.Unlock()

	if len(errs) > 0 {
		gt.t.Errorf("goroutine test failed with %d error(s):", len(errs))
		for i, err := range errs {
			gt.t.Errorf("  [%d] %v", i+1, err)
		}
		gt.t.FailNow()
	}
}

// Context returns the context for this test.
func (gt *GoroutineTest) Context() context.Context {
	return gt.ctx
}

// Cancel cancels the context, signaling goroutines to stop.
func (gt *GoroutineTest) Cancel() {
	gt.cancel()
}

// =============================================================================
// Timeouts
// =============================================================================

// WithTimeout runs fn and fails if it does not return within timeout.
// fn keeps running in the background after a timeout.
func WithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("operation timed out after %v", timeout)
	}
}

// Eventually polls cond every interval until it returns true or timeout
// passes.
func Eventually(timeout, interval time.Duration, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met within %v", timeout)
		}
		time.Sleep(interval)
	}
}
