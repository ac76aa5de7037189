package engine

import "sync"

// State is one published view of a collection.
type State[T any] struct {
	Items   []T   `json:"items"`
	Loading bool  `json:"loading"`
	Err     error `json:"-"`
}

// Collection is an observable holding the latest snapshot of one synced
// collection. Every publish replaces the items wholesale.
//
// Publishes carry the generation of the identity they belong to; once the
// engine moves to a new generation, late publishes from the old one are
// dropped.
type Collection[T any] struct {
	pubMu sync.Mutex // serializes publish, reset and listener calls

	mu        sync.RWMutex
	state     State[T]
	gen       uint64
	listeners map[int]func(State[T])
	next      int
}

func newCollection[T any]() *Collection[T] {
	return &Collection[T]{listeners: map[int]func(State[T]){}}
}

// Snapshot returns a copy of the current state.
func (c *Collection[T]) Snapshot() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

func (c *Collection[T]) copyLocked() State[T] {
	s := c.state
	s.Items = append([]T(nil), c.state.Items...)
	return s
}

// Items is shorthand for Snapshot().Items.
func (c *Collection[T]) Items() []T {
	return c.Snapshot().Items
}

// Subscribe calls fn with the current state and then after every change
// until the returned func is called. fn must not block or call back into
// the Engine.
func (c *Collection[T]) Subscribe(fn func(State[T])) func() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	id := c.next
	c.next++
	c.listeners[id] = fn
	s := c.copyLocked()
	c.mu.Unlock()

	fn(s)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// publish replaces the state if gen is still current. It reports whether
// the state was applied.
func (c *Collection[T]) publish(gen uint64, s State[T]) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()

	c.emit()
	return true
}

// update edits the current state in place if gen is still current and
// reports whether it did.
func (c *Collection[T]) update(gen uint64, fn func(*State[T])) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	c.mu.Unlock()

	c.emit()
	return true
}

// reset moves the collection to generation gen with the given state.
func (c *Collection[T]) reset(gen uint64, loading bool) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	c.gen = gen
	c.state = State[T]{Loading: loading}
	c.mu.Unlock()

	c.emit()
}

// emit runs with pubMu held.
func (c *Collection[T]) emit() {
	c.mu.RLock()
	s := c.copyLocked()
	fns := make([]func(State[T]), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}
