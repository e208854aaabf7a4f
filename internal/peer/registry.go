package peer

import (
	"slices"
	"sync"
)

// registry is an arena of subscriptions owned by a Controller. Every
// subscriber gets a release func; reset drops all of them at teardown so no
// callback outlives the connection.
type registry[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(T)
	closed bool
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{subs: make(map[uint64]func(T))}
}

// add registers fn and returns a func that removes it. Adding to a cleared
// registry is a no-op.
func (r *registry[T]) add(fn func(T)) (release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return func() {}
	}

	id := r.nextID
	r.nextID++
	r.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// emit calls every subscriber in registration order. Subscribers run outside
// the lock so they may release themselves.
func (r *registry[T]) emit(v T) {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	fns := make([]func(T), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, r.subs[id])
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// count reports the number of live subscribers.
func (r *registry[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// reset drops every subscriber and refuses new ones.
func (r *registry[T]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	clear(r.subs)
}
