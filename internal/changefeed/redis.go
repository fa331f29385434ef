package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/logging"
)

// RedisQueue stores events in a Redis list so several engine processes can
// share one change feed.
type RedisQueue struct {
	ops    ListOperations
	key    string
	closed atomic.Bool
}

// NewRedisQueue creates a queue on the list at key.
func NewRedisQueue(ops ListOperations, key string) *RedisQueue {
	if key == "" {
		key = "ultratable:changefeed"
	}
	return &RedisQueue{ops: ops, key: key}
}

// Enqueue appends the JSON-encoded event to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := prepare(event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := q.ops.ListPush(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to enqueue change event: %w", err)
	}
	return nil
}

// Dequeue pops up to batchSize events from the head of the list. Entries
// that do not decode are dropped.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for len(events) < batchSize {
		data, err := q.ops.ListPop(ctx, q.key)
		if err != nil {
			return events, fmt.Errorf("failed to dequeue change event: %w", err)
		}
		if data == nil {
			break
		}
		var event core.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			logging.WithComponent("changefeed").Warn("dropping undecodable event", "key", q.key, "error", err)
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Size returns the list length, or 0 when Redis cannot be reached.
func (q *RedisQueue) Size() int {
	if q.closed.Load() {
		return 0
	}
	n, err := q.ops.ListLength(context.Background(), q.key)
	if err != nil {
		return 0
	}
	return int(n)
}

// Close marks the queue closed. The Redis connection is owned by the caller.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
