// Package testing holds shared test helpers.
package testing

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// CheckGoroutineCleanup verifies no goroutine leaks after test completion.
// Usage: defer CheckGoroutineCleanup(t)() at the start of any test that
// starts listeners or other background goroutines.
func CheckGoroutineCleanup(t *testing.T) func() {
	before := runtime.NumGoroutine()

	return func() {
		assert.Eventually(t, func() bool {
			// Eventually runs this condition in a goroutine of its own;
			// discount it so the probe does not count itself as a leak.
			after := runtime.NumGoroutine() - 1
			if after > before {
				t.Logf("Goroutine leak detected: before=%d, after=%d", before, after)
				return false
			}
			return true
		}, 5*time.Second, 100*time.Millisecond,
			"goroutines still running after test")
	}
}

// WaitForGoroutines waits for a WaitGroup with a timeout so a stuck
// goroutine fails the test instead of hanging it.
func WaitForGoroutines(wg *sync.WaitGroup, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("goroutines did not exit within timeout")
	}
}
