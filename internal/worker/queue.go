package worker

import (
	"errors"
	"sync"
)

var (
	// ErrQueueClosed is returned by Sender.Send after the queue has been closed.
	ErrQueueClosed = errors.New("worker: send on closed queue")
	// ErrDisconnected is returned by Receiver.Receive once the queue is closed and drained.
	ErrDisconnected = errors.New("worker: queue disconnected")
)

// queue is an unbounded FIFO of jobs. mu serializes every access to items,
// so at most one receiver removes the head at a time.
type queue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	items  []Job
	closed bool
}

// Sender is the producer side of a job queue.
type Sender struct {
	q *queue
}

// Receiver is the consumer side of a job queue. One Receiver is shared by
// every worker of a pool.
type Receiver struct {
	q *queue
}

// NewQueue creates an unbounded job queue and returns its two ends.
func NewQueue() (*Sender, *Receiver) {
	q := &queue{}
	q.ready = sync.NewCond(&q.mu)
	return &Sender{q: q}, &Receiver{q: q}
}

// Send appends job to the tail of the queue. It never blocks on capacity.
func (s *Sender) Send(job Job) error {
	q := s.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, job)
	// One item, one waiter.
	q.ready.Signal()
	return nil
}

// Close disables further sends. Items already queued are still delivered;
// after that every Receive returns ErrDisconnected. Close is idempotent.
func (s *Sender) Close() {
	q := s.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.ready.Broadcast()
}

// Receive removes and returns the oldest queued job, blocking until one is
// available. It returns ErrDisconnected when the queue is closed and empty.
func (r *Receiver) Receive() (Job, error) {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return nil, ErrDisconnected
		}
		q.ready.Wait()
	}

	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Release the consumed prefix of the backing array.
		q.items = nil
	}
	return job, nil
}

// Len returns the number of jobs waiting to be received.
func (r *Receiver) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.items)
}
