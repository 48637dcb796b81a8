package processing

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// Queue errors.
var (
	// ErrQueueClosed means Enqueue was called after Close.
	ErrQueueClosed = errors.New("job queue is closed")
)

// Queue is a FIFO job queue. Dequeue blocks until an envelope is
// available or the context is cancelled. After Close, Dequeue drains the
// remaining envelopes and then returns (nil, nil) so workers can exit
// cleanly.
type Queue interface {
	Enqueue(ctx context.Context, env *JobEnvelope) error
	Dequeue(ctx context.Context) (*JobEnvelope, error)
	Len() int
	Close() error
}

// ============================================================================
// MemoryQueue
// ============================================================================

// MemoryQueue is an unbounded in-process queue. Suitable for single-node
// deployments and tests; envelopes do not survive a restart.
type MemoryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{items: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an envelope.
func (q *MemoryQueue) Enqueue(ctx context.Context, env *JobEnvelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items.PushBack(env)
	q.cond.Signal()
	return nil
}

// Dequeue pops the oldest envelope, blocking until one arrives, the
// context is cancelled, or the queue is closed and drained.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*JobEnvelope, error) {
	// Waking every waiter on cancellation lets the affected one observe
	// its context; the rest go back to sleep.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if front := q.items.Front(); front != nil {
			q.items.Remove(front)
			return front.Value.(*JobEnvelope), nil
		}
		if q.closed {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
}

// Len returns the number of queued envelopes.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close stops accepting envelopes. Queued envelopes remain dequeueable.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	return nil
}

// ============================================================================
// BoundedQueue
// ============================================================================

// BoundedQueue is a fixed-capacity in-process queue. Enqueue blocks when
// the queue is full, providing backpressure to upload commits.
type BoundedQueue struct {
	ch        chan *JobEnvelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewBoundedQueue creates a queue holding at most capacity envelopes.
func NewBoundedQueue(capacity int) *BoundedQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedQueue{
		ch:   make(chan *JobEnvelope, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue appends an envelope, blocking while the queue is full.
func (q *BoundedQueue) Enqueue(ctx context.Context, env *JobEnvelope) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- env:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue pops the oldest envelope. After Close it keeps draining the
// buffer and returns (nil, nil) once empty.
func (q *BoundedQueue) Dequeue(ctx context.Context) (*JobEnvelope, error) {
	select {
	case env := <-q.ch:
		return env, nil
	case <-q.done:
		// Drain what was buffered before the close.
		select {
		case env := <-q.ch:
			return env, nil
		default:
			return nil, nil
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of buffered envelopes.
func (q *BoundedQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting envelopes. Buffered envelopes remain
// dequeueable.
func (q *BoundedQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
