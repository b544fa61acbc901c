package reconciler

import (
	"context"
	"sync"
)

type writeOp struct {
	name   string
	id     string
	run    func(ctx context.Context) error
	settle func()
	handle *Write
}

// writeQueue is an unbounded FIFO drained by a single writer goroutine.
type writeQueue struct {
	mu     sync.Mutex
	items  []writeOp
	closed bool
	signal chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{signal: make(chan struct{}, 1)}
}

func (q *writeQueue) push(op writeOp) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, op)
	q.wake()
	return true
}

// pop returns the oldest op. closed is only meaningful when ok is false.
func (q *writeQueue) pop() (op writeOp, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return writeOp{}, false, q.closed
	}
	op = q.items[0]
	q.items[0] = writeOp{}
	q.items = q.items[1:]
	return op, true, false
}

// close stops accepting ops. Queued ops are still handed out by pop.
func (q *writeQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.wake()
}

func (q *writeQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Write tracks one remote persistence call.
type Write struct {
	done chan struct{}
	err  error
}

func newWrite() *Write {
	return &Write{done: make(chan struct{})}
}

func (w *Write) resolve(err error) {
	w.err = err
	close(w.done)
}

// Done is closed once the store acknowledged or rejected the write.
func (w *Write) Done() <-chan struct{} { return w.done }

// Err is the outcome of the write. It is only valid after Done is closed.
func (w *Write) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Wait blocks until the write resolves or ctx ends. A ctx error does not
// cancel the write.
func (w *Write) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
