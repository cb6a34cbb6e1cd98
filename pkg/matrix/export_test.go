package matrix

import "time"

// SetAfterPublish installs a hook run once an origin's row is published and
// before the origin is marked finished.
func (e *Engine) SetAfterPublish(h func(origin uint32) error) {
	e.afterPublish = h
}

func (c Config) Deadline(n uint32) time.Duration {
	return c.deadline(n)
}
