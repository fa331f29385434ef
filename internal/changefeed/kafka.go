package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/logging"
)

// KafkaQueue publishes events to a Kafka topic keyed by table id, so events
// of one table stay ordered within a partition.
type KafkaQueue struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	topic   string
	groupID string
	maxWait time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	size   int // produced minus consumed by this process
}

// KafkaQueueConfig holds configuration for the Kafka queue.
type KafkaQueueConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	BatchSize       int
	BatchTimeout    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	RequiredAcks    int // 0, 1, or -1 (all)
	MaxMessageBytes int
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
}

// NewKafkaQueue creates a producer and a consumer-group reader on the topic.
func NewKafkaQueue(config KafkaQueueConfig) (*KafkaQueue, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = "ultratable-invalidator"
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 500 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		ReadTimeout:  config.ReadTimeout,
		BatchBytes:   int64(config.MaxMessageBytes),
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
	}

	// New consumer groups start from the newest offset: stale invalidations
	// are harmless because cache keys carry revisions.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.LastOffset,
	})

	logger := logging.WithComponent("changefeed").With("queue", "kafka", "topic", config.Topic)
	logger.Info("kafka queue ready", "brokers", config.Brokers, "group", config.GroupID)

	return &KafkaQueue{
		writer:  writer,
		reader:  reader,
		topic:   config.Topic,
		groupID: config.GroupID,
		maxWait: config.MaxWait,
		logger:  logger,
	}, nil
}

// Enqueue produces the event synchronously.
func (q *KafkaQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}
	if err := prepare(event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Table),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(event.Op)},
			{Key: "table", Value: []byte(event.Table)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		q.logger.Error("produce failed", "table", event.Table, "error", err, "duration", time.Since(start))
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()
	q.logger.Debug("produced", "table", event.Table, "op", event.Op, "revision", event.Revision)
	return nil
}

// Dequeue fetches up to batchSize events, waiting at most MaxWait for the
// batch, and commits their offsets once decoded.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	readCtx, cancel := context.WithTimeout(ctx, q.maxWait)
	defer cancel()

	events := make([]*core.ChangeEvent, 0, batchSize)
	messages := make([]kafka.Message, 0, batchSize)
	for len(messages) < batchSize {
		msg, err := q.reader.FetchMessage(readCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			q.logger.Error("fetch failed", "error", err)
			break
		}
		messages = append(messages, msg)

		var event core.ChangeEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			q.logger.Warn("dropping undecodable event", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		events = append(events, &event)
	}

	if len(messages) > 0 {
		if err := q.reader.CommitMessages(ctx, messages...); err != nil {
			q.logger.Warn("offset commit failed", "messages", len(messages), "error", err)
		}
		q.mu.Lock()
		q.size = max(q.size-len(messages), 0)
		q.mu.Unlock()
	}
	return events, ctx.Err()
}

// Size returns an approximation: events produced minus events consumed by
// this process.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the producer and the consumer.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	return errors.Join(q.writer.Close(), q.reader.Close())
}
