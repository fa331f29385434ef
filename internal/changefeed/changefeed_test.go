package changefeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

func event(table string, rev uint64) *core.ChangeEvent {
	return &core.ChangeEvent{Table: table, Op: core.ChangeUpdate, Revision: rev}
}

func TestMemoryQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)

	for i := uint64(1); i <= 3; i++ {
		if err := q.Enqueue(ctx, event("t", i)); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	if q.Size() != 3 {
		t.Fatalf("Size = %d, want 3", q.Size())
	}

	got, err := q.Dequeue(ctx, 2)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 2 || got[0].Revision != 1 || got[1].Revision != 2 {
		t.Fatalf("Dequeue = %+v, want revisions 1,2", got)
	}
	if got[0].Timestamp.IsZero() {
		t.Fatalf("Enqueue did not stamp the event")
	}
}

func TestMemoryQueueErrors(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(1)

	if err := q.Enqueue(ctx, &core.ChangeEvent{}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("event without table: err = %v, want ErrInvalidEvent", err)
	}
	if err := q.Enqueue(ctx, event("t", 1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, event("t", 2)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("full queue: err = %v, want ErrQueueFull", err)
	}

	q.Close()
	if err := q.Enqueue(ctx, event("t", 3)); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("closed queue: err = %v, want ErrQueueClosed", err)
	}
	got, _ := q.Dequeue(ctx, 10)
	if len(got) != 1 {
		t.Fatalf("buffered events after Close = %d, want 1", len(got))
	}
}

// fakeLists implements ListOperations in memory.
type fakeLists struct {
	mu    sync.Mutex
	lists map[string][][]byte
}

func (f *fakeLists) ListPush(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lists == nil {
		f.lists = make(map[string][][]byte)
	}
	f.lists[key] = append(f.lists[key], value)
	return nil
}

func (f *fakeLists) ListPop(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	if len(l) == 0 {
		return nil, nil
	}
	f.lists[key] = l[1:]
	return l[0], nil
}

func (f *fakeLists) ListLength(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

func TestRedisQueueRoundTrip(t *testing.T) {
	ctx := context.Background()
	lists := &fakeLists{}
	q := NewRedisQueue(lists, "feed")

	ev := event("orders", 7)
	ev.RowID = "r1"
	ev.Column = "total"
	if err := q.Enqueue(ctx, ev); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	lists.ListPush(ctx, "feed", []byte("not json"))

	if q.Size() != 2 {
		t.Fatalf("Size = %d, want 2", q.Size())
	}
	got, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Dequeue returned %d events, want 1", len(got))
	}
	if got[0].Table != "orders" || got[0].RowID != "r1" || got[0].Column != "total" || got[0].Revision != 7 {
		t.Fatalf("decoded event = %+v", got[0])
	}
}

func TestNewSelectsQueue(t *testing.T) {
	cfg := registry.DefaultInternalConfig().ChangeFeed

	q, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New(memory): %v", err)
	}
	if _, ok := q.(*MemoryQueue); !ok {
		t.Fatalf("New(memory) = %T", q)
	}

	cfg.QueueType = "redis"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("New(redis) without connection succeeded")
	}
	q, err = New(cfg, &fakeLists{})
	if err != nil {
		t.Fatalf("New(redis): %v", err)
	}
	if _, ok := q.(*RedisQueue); !ok {
		t.Fatalf("New(redis) = %T", q)
	}

	cfg.QueueType = "nats"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("New(nats) succeeded")
	}
}

func TestDrainerDeliversToHandlers(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(100)

	var mu sync.Mutex
	var seen []uint64
	done := make(chan struct{})
	record := func(_ context.Context, e *core.ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Revision)
		if len(seen) == 5 {
			close(done)
		}
		return nil
	}
	failing := func(context.Context, *core.ChangeEvent) error { return errors.New("boom") }

	d := NewDrainer(q, DrainerConfig{DrainRate: 1000, BatchSize: 2, PollInterval: time.Millisecond}, record, failing)
	for i := uint64(1); i <= 5; i++ {
		q.Enqueue(ctx, event("t", i))
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("drainer did not deliver every event before timeout")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if d.IsRunning() {
		t.Fatalf("IsRunning after Stop")
	}

	for i, rev := range seen {
		if rev != uint64(i+1) {
			t.Fatalf("delivery order = %v", seen)
		}
	}
	if st := d.Stats(); st.Handled != 5 || st.Failed != 5 {
		t.Fatalf("Stats = %+v, want 5 handled, 5 failed", st)
	}
}

func TestDrainerFlush(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(10)
	count := 0
	d := NewDrainer(q, DrainerConfig{BatchSize: 2}, func(context.Context, *core.ChangeEvent) error {
		count++
		return nil
	})
	for i := uint64(1); i <= 5; i++ {
		q.Enqueue(ctx, event("t", i))
	}
	if err := d.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if count != 5 || q.Size() != 0 {
		t.Fatalf("Flush handled %d, queue size %d", count, q.Size())
	}
}
