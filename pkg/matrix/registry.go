package matrix

import "sync/atomic"

// completion records which origins have published their rows to the merged
// store. markDone is called only after the last Offer of the origin has
// returned, and an atomic store happens before any atomic load observing
// it, so a worker that sees isDone(v) also sees all of v's published slots.
type completion struct {
	done  []atomic.Bool
	count atomic.Int64
}

func newCompletion(n uint32) *completion {
	return &completion{done: make([]atomic.Bool, n)}
}

// markDone flags origin as finished and returns the number finished so far.
func (c *completion) markDone(origin uint32) int64 {
	c.done[origin].Store(true)
	return c.count.Add(1)
}

func (c *completion) isDone(origin uint32) bool {
	return c.done[origin].Load()
}

func (c *completion) finished() int64 {
	return c.count.Load()
}
