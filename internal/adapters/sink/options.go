package sink

// Option applies a configuration option to the MemoryQueue.
type Option func(*MemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *MemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithBufferSize sets the buffer size for the events channel.
func WithBufferSize(size int) Option {
	return func(q *MemoryQueue) {
		if size > 0 {
			q.bufferSize = size
		}
	}
}
