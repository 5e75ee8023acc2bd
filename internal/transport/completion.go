package transport

import "sync"

// completion delivers an exchange outcome exactly once. Later deliveries,
// e.g. an error event racing a finished response, are dropped.
type completion[T any] struct {
	once sync.Once
	fn   func(T, error)
}

func newCompletion[T any](fn func(T, error)) *completion[T] {
	return &completion[T]{fn: fn}
}

// complete invokes the callback if nothing was delivered yet and reports
// whether it did
func (c *completion[T]) complete(v T, err error) bool {
	fired := false
	c.once.Do(func() {
		fired = true
		if c.fn != nil {
			c.fn(v, err)
		}
	})
	return fired
}
