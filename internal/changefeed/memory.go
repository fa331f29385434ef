package changefeed

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

// MemoryQueue is a channel-backed change queue for a single process.
type MemoryQueue struct {
	queue  chan *core.ChangeEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue buffering up to bufferSize events.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryQueue{queue: make(chan *core.ChangeEvent, bufferSize)}
}

// Enqueue adds an event without blocking. A full buffer is an error.
func (q *MemoryQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	if err := prepare(event); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue returns up to batchSize buffered events in FIFO order.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for len(events) < batchSize {
		select {
		case event, ok := <-q.queue:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

// Size returns the number of buffered events.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close stops further enqueues. Buffered events can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
