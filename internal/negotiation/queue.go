package negotiation

import "sync"

// chain is one negotiation-affecting sequence of engine calls. done, when
// set, receives the chain's result and must have capacity for it.
type chain struct {
	name string
	run  func() error
	done chan error
}

// chainQueue runs chains one at a time, in submission order, on a single
// worker goroutine. push never blocks, so engine callbacks may submit work
// while a chain is in flight.
type chainQueue struct {
	mu      sync.Mutex
	pending []*chain
	closed  bool

	wake    chan struct{}
	stopped chan struct{}
}

func newChainQueue() *chainQueue {
	return &chainQueue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// push appends c. It returns ErrClosed once the queue has been closed.
func (q *chainQueue) push(c *chain) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, c)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// run is the worker loop. report is called after every chain with its
// result. run returns after close; the chain in flight at that moment is
// allowed to finish.
func (q *chainQueue) run(report func(*chain, error)) {
	defer close(q.stopped)

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		c := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		report(c, c.run())
	}
}

// close stops the queue. Chains not yet started fail with ErrClosed.
func (q *chainQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, c := range dropped {
		if c.done != nil {
			c.done <- ErrClosed
		}
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}
