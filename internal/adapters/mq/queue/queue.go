// Package queue buffers verification events between HTTP ingestion and the
// ledger workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/proofkit/internal/domain/model"
	"github.com/okian/proofkit/pkg/metrics"
)

const defaultCapacity = 50_000

// Event is the payload flowing through the queue.
type Event = model.VerificationEvent

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds an event. Returns false when the queue is full or closed.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns a channel of queued events. It is closed once the queue
	// is closed and drained.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the number of queued events.
	Len(ctx context.Context) int

	// Close stops accepting events. Already queued events remain readable.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Capacity returns the maximum number of queued events.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool { //nolint:gocritic // hugeParam: events travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		q.reject("context_cancelled")
		return false
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.observe()
		return true
	default:
		q.reject("full")
		return false
	}
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueRejected(reason)
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) observe() {
	n := len(q.events)
	metrics.UpdateQueueSize(n)
	metrics.UpdateQueueUtilization(float64(n) / float64(q.capacity))
}

// Dequeue implements Queue. Each call starts a forwarder; callers normally
// call it once per consumer.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for e := range q.events {
			select {
			case out <- e:
				metrics.RecordQueueDequeue()
				q.observe()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observe()
	return len(q.events)
}

// Close implements Queue. Closing twice is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
