// Package listeners provides ordered callback registries keyed by
// process-unique ids.
package listeners

import (
	"sync"
	"sync/atomic"
)

// ID identifies a registered listener. IDs are unique across all
// registries of the process and strictly increasing.
type ID uint64

var lastID atomic.Uint64

func nextID() ID {
	return ID(lastID.Add(1))
}

// Listener is a registered callback together with the value it waits for.
type Listener[T any] struct {
	ID       ID
	Target   T
	Callback func(observed T)
}

// Registry is an ordered collection of listeners. It is safe for
// concurrent use; callbacks are always invoked without the registry lock
// held so they may add or remove listeners.
type Registry[T any] struct {
	mu    sync.Mutex
	items []Listener[T]
}

// Add registers a callback waiting for target and returns its id.
func (r *Registry[T]) Add(target T, cb func(observed T)) ID {
	id := nextID()
	r.mu.Lock()
	r.items = append(r.items, Listener[T]{ID: id, Target: target, Callback: cb})
	r.mu.Unlock()
	return id
}

// Remove unregisters the listener with the given id. It returns false
// when no such listener exists.
func (r *Registry[T]) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	kept := r.items[:0]
	for _, l := range r.items {
		if l.ID == id {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	// Zero the tail so removed callbacks can be collected
	for i := len(kept); i < len(r.items); i++ {
		r.items[i] = Listener[T]{}
	}
	r.items = kept
	return found
}

// Len returns the number of registered listeners.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Listeners returns a copy of the registered listeners in insertion order.
func (r *Registry[T]) Listeners() []Listener[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Listener[T], len(r.items))
	copy(out, r.items)
	return out
}

// Dispatch invokes, in order, every listener whose target matches the
// observed value. A nil match function matches every listener.
// It returns the number of callbacks invoked.
func (r *Registry[T]) Dispatch(observed T, match func(target, observed T) bool) int {
	n := 0
	for _, l := range r.Listeners() {
		if match != nil && !match(l.Target, observed) {
			continue
		}
		l.Callback(observed)
		n++
	}
	return n
}

// Clear removes all listeners.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
