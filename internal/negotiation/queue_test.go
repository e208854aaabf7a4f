package negotiation

import (
	"errors"
	"testing"
	"time"
)

func TestChainQueueRunsInOrder(t *testing.T) {
	q := newChainQueue()

	var order []string
	results := make(chan error, 3)
	go q.run(func(c *chain, err error) {
		order = append(order, c.name)
		results <- err
	})

	for _, name := range []string{"a", "b", "c"} {
		if err := q.push(&chain{name: name, run: func() error { return nil }}); err != nil {
			t.Fatalf("push %s: %v", name, err)
		}
	}
	for j := 0; j < 3; j++ {
		<-results
	}
	q.close()
	<-q.stopped

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("order = %v, want [a b c]", order)
	}
}

// TestChainQueueCloseDropsPending verifies that close fails chains that have
// not started, lets the running chain finish, and rejects later pushes.
func TestChainQueueCloseDropsPending(t *testing.T) {
	q := newChainQueue()

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan string, 2)
	go q.run(func(c *chain, err error) { finished <- c.name })

	if err := q.push(&chain{name: "running", run: func() error {
		close(started)
		<-release
		return nil
	}}); err != nil {
		t.Fatalf("push: %v", err)
	}
	<-started

	queued := make(chan error, 1)
	if err := q.push(&chain{name: "queued", run: func() error { return nil }, done: queued}); err != nil {
		t.Fatalf("push: %v", err)
	}

	q.close()
	if err := <-queued; !errors.Is(err, ErrClosed) {
		t.Fatalf("queued chain got %v, want ErrClosed", err)
	}
	if err := q.push(&chain{name: "late", run: func() error { return nil }}); !errors.Is(err, ErrClosed) {
		t.Fatalf("push after close = %v, want ErrClosed", err)
	}

	select {
	case <-q.stopped:
		t.Fatal("worker stopped while a chain was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-q.stopped
	if name := <-finished; name != "running" {
		t.Errorf("finished %q, want running", name)
	}
	select {
	case name := <-finished:
		t.Errorf("dropped chain %q was reported", name)
	default:
	}
}
