package support

import (
	"fmt"
	"sync"
	"time"
)

// Call captures the callbacks of one bridge operation.
type Call struct {
	done chan struct{}

	mu       sync.Mutex
	ok       bool
	payload  any
	resolved int
}

// NewCall returns an unresolved call.
func NewCall() *Call {
	return &Call{done: make(chan struct{})}
}

// Success is the success callback.
func (c *Call) Success(v any) { c.resolve(true, v) }

// Failure is the failure callback.
func (c *Call) Failure(v any) { c.resolve(false, v) }

func (c *Call) resolve(ok bool, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved++
	if c.resolved > 1 {
		return
	}
	c.ok, c.payload = ok, v
	close(c.done)
}

// Wait blocks until the call resolves or timeout passes.
func (c *Call) Wait(timeout time.Duration) (bool, any, error) {
	select {
	case <-c.done:
	case <-time.After(timeout):
		return false, nil, fmt.Errorf("no callback within %s", timeout)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ok, c.payload, nil
}

// Resolutions reports how often any callback fired.
func (c *Call) Resolutions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}
