// Package sink delivers pipeline lifecycle events to downstream consumers.
//
// Events flow through an in-memory bounded queue and are fanned out to
// registered listeners by a dispatcher. Delivery is best-effort: a full
// queue drops events rather than stalling the frame loop.
package sink

import (
	"context"
	"sync"

	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultBufferSize    = 1024
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event to the queue.
	// Returns false if the queue is full and the event was not enqueued.
	Enqueue(ctx context.Context, e model.Event) bool

	// Dequeue returns a channel that will receive events as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan model.Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new events can be enqueued and the dequeue channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// MemoryQueue implements Queue using a buffered channel.
type MemoryQueue struct {
	events     chan model.Event
	capacity   int
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// NewMemoryQueue creates a new in-memory queue with configuration options.
func NewMemoryQueue(opts ...Option) *MemoryQueue {
	q := &MemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	// Initialize the events channel with the configured buffer size
	q.events = make(chan model.Event, q.bufferSize)

	// Initialize metrics
	metrics.UpdateSinkQueueCapacity(q.capacity)
	metrics.UpdateSinkQueueSize(0)
	metrics.UpdateSinkQueueUtilization(0.0)

	return q
}

// Enqueue adds an event to the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, e model.Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordSinkDropped()
		metrics.RecordErrorByComponent("sink", "closed")
		return false
	}

	if len(q.events) >= q.capacity {
		metrics.RecordSinkDropped()
		metrics.RecordErrorByComponent("sink", "capacity_exceeded")
		return false
	}

	select {
	case q.events <- e:
		metrics.RecordSinkEnqueue()
		q.updateGauges()
		return true
	case <-ctx.Done():
		metrics.RecordSinkDropped()
		metrics.RecordErrorByComponent("sink", "context_cancelled")
		return false
	default:
		metrics.RecordSinkDropped()
		metrics.RecordErrorByComponent("sink", "queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive events as they become available.
func (q *MemoryQueue) Dequeue(ctx context.Context) <-chan model.Event {
	// Wrap the channel to track dequeue metrics
	dequeueChan := make(chan model.Event)
	go func() {
		defer close(dequeueChan)
		for event := range q.events {
			select {
			case dequeueChan <- event:
				metrics.RecordSinkDequeue()
				q.updateGauges()
			case <-ctx.Done():
				return
			}
		}
	}()
	return dequeueChan
}

// Len returns the current number of queued events.
func (q *MemoryQueue) Len(ctx context.Context) int {
	size := len(q.events)
	q.updateGauges()
	return size
}

func (q *MemoryQueue) updateGauges() {
	size := len(q.events)
	metrics.UpdateSinkQueueSize(size)
	metrics.UpdateSinkQueueUtilization(float64(size) / float64(q.capacity))
}

// Close gracefully shuts down the queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	// Close the events channel to signal consumers to stop
	close(q.events)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *MemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
