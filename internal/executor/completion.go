package executor

import "sync"

// Completion is a single-shot result slot for one operation. The first Resolve
// wins; later calls are ignored.
type Completion[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// NewCompletion returns an unresolved completion.
func NewCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// Resolve stores v and reports whether this call resolved the slot.
func (c *Completion[T]) Resolve(v T) bool {
	resolved := false
	c.once.Do(func() {
		c.value = v
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the completion resolves.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

// Resolved reports whether the completion has a value.
func (c *Completion[T]) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Value returns the resolved value, or the zero value if unresolved.
func (c *Completion[T]) Value() T {
	if !c.Resolved() {
		var zero T
		return zero
	}
	return c.value
}
