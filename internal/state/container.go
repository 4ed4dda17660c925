// Package state holds the reactive container both stores are built on.
package state

import (
	"sync"
)

// Listener receives every committed snapshot together with its version.
type Listener[S any] func(snapshot S, version uint64)

// Container serializes state transitions for one store. Each Update is one
// atomic commit: observers never see a half-applied transition, and listeners
// are called in commit order.
//
// S must be treated as an immutable value: update functions return a new
// value instead of mutating slices shared with earlier snapshots.
type Container[S any] struct {
	mu      sync.Mutex
	state   S
	version uint64

	notifyMu  sync.Mutex
	listeners map[uint64]Listener[S]
	nextID    uint64
}

// New returns a container holding initial at version 0.
func New[S any](initial S) *Container[S] {
	return &Container[S]{
		state:     initial,
		listeners: make(map[uint64]Listener[S]),
	}
}

// Snapshot returns the current state.
func (c *Container[S]) Snapshot() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Version returns the number of commits so far.
func (c *Container[S]) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Update applies fn to the current state and commits the result.
func (c *Container[S]) Update(fn func(S) S) S {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.state = fn(c.state)
	c.version++
	snapshot, version := c.state, c.version
	c.mu.Unlock()

	for _, l := range c.snapshotListeners() {
		l(snapshot, version)
	}
	return snapshot
}

// Subscribe registers l and returns a function that removes it. Listeners run
// synchronously after each commit and must not call Update themselves.
func (c *Container[S]) Subscribe(l Listener[S]) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Container[S]) snapshotListeners() []Listener[S] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Listener[S], 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l)
	}
	return out
}
