package cache

import "sync"

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int64
}

func (c *SafeCounter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Inc adds one and returns the new value.
func (c *SafeCounter) Inc() int64 {
	return c.Add(1)
}

// Add adds n and returns the new value.
func (c *SafeCounter) Add(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v += n
	return c.v
}

// Swap stores v and returns the previous value.
func (c *SafeCounter) Swap(v int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.v
	c.v = v
	return old
}
