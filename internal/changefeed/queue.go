// Package changefeed carries table mutation events from the table layer to
// the consumers that react to them, chiefly the derived-value cache
// invalidator. Queues come in memory, Redis list and Kafka flavours; a
// rate-limited Drainer feeds dequeued events to handlers.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

var (
	// ErrQueueClosed is returned when using a closed queue.
	ErrQueueClosed = errors.New("change queue is closed")

	// ErrQueueFull is returned by the memory queue when its buffer is full.
	ErrQueueFull = errors.New("change queue is full")

	// ErrInvalidEvent is returned for nil events or events without a table.
	ErrInvalidEvent = errors.New("invalid change event")
)

// ListOperations are the Redis list commands the Redis queue needs.
// kvstore.RedisKVStore implements them.
type ListOperations interface {
	// ListPush adds a value to the end of a list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the first element from a list (LPOP).
	// Returns nil if the list is empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}

// prepare validates an event and stamps its timestamp.
func prepare(event *core.ChangeEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.Table == "" {
		return fmt.Errorf("%w: table is required", ErrInvalidEvent)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return nil
}

// New builds the queue selected by the change feed configuration. lists is
// only used, and then required, for the "redis" queue type.
func New(cfg registry.InternalChangeFeedConfig, lists ListOperations) (core.ChangeQueue, error) {
	switch cfg.QueueType {
	case "", "memory":
		return NewMemoryQueue(cfg.BufferSize), nil
	case "redis":
		if lists == nil {
			return nil, fmt.Errorf("redis change queue requires a Redis connection")
		}
		return NewRedisQueue(lists, cfg.RedisKey), nil
	case "kafka":
		k := cfg.KafkaConfig
		return NewKafkaQueue(KafkaQueueConfig{
			Brokers:         k.Brokers,
			Topic:           k.Topic,
			GroupID:         k.GroupID,
			BatchSize:       k.BatchSize,
			BatchTimeout:    k.BatchTimeout,
			WriteTimeout:    k.WriteTimeout,
			ReadTimeout:     k.ReadTimeout,
			RequiredAcks:    k.RequiredAcks,
			MaxMessageBytes: k.MaxMessageBytes,
			MinBytes:        k.MinBytes,
			MaxBytes:        k.MaxBytes,
			MaxWait:         k.MaxWait,
		})
	default:
		return nil, fmt.Errorf("unsupported change queue type: %s", cfg.QueueType)
	}
}
