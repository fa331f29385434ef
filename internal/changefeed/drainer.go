package changefeed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/logging"
)

// Handler consumes one change event.
type Handler func(ctx context.Context, event *core.ChangeEvent) error

// DrainerConfig contains configuration for the drainer.
type DrainerConfig struct {
	// DrainRate is the maximum number of events handled per second.
	DrainRate int

	// BatchSize is how many events to dequeue at once.
	BatchSize int

	// PollInterval is how long to wait when the queue is empty.
	PollInterval time.Duration
}

// DefaultDrainerConfig returns the defaults for the drainer.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:    500,
		BatchSize:    100,
		PollInterval: 100 * time.Millisecond,
	}
}

// DrainerStats counts what the drainer has done since it was created.
type DrainerStats struct {
	Handled int
	Failed  int
}

// Drainer reads events from a queue in the background and hands each one to
// every handler, at most DrainRate events per second.
type Drainer struct {
	queue    core.ChangeQueue
	handlers []Handler
	config   DrainerConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   DrainerStats
}

// NewDrainer creates a drainer over queue.
func NewDrainer(queue core.ChangeQueue, config DrainerConfig, handlers ...Handler) *Drainer {
	def := DefaultDrainerConfig()
	if config.DrainRate <= 0 {
		config.DrainRate = def.DrainRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	return &Drainer{
		queue:    queue,
		handlers: handlers,
		config:   config,
		logger:   logging.WithComponent("drainer"),
	}
}

// Start launches the drain loop. Starting a running drainer is a no-op.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go d.run(ctx, d.stopCh, d.doneCh)
	d.logger.Info("started", "rate", d.config.DrainRate, "batch", d.config.BatchSize)
	return nil
}

// Stop stops the loop and waits for the in-flight batch to finish.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
	d.logger.Info("stopped", "handled", d.Stats().Handled)
	return nil
}

// IsRunning returns whether the drainer is currently running.
func (d *Drainer) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// QueueSize returns the current size of the queue.
func (d *Drainer) QueueSize() int {
	return d.queue.Size()
}

// Stats returns the handled and failed event counts.
func (d *Drainer) Stats() DrainerStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// Flush synchronously drains every queued event, ignoring the rate limit.
// It is used on shutdown and by tests.
func (d *Drainer) Flush(ctx context.Context) error {
	for {
		events, err := d.queue.Dequeue(ctx, d.config.BatchSize)
		for _, event := range events {
			d.handle(ctx, event)
		}
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
	}
}

func (d *Drainer) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	limiter := rate.NewLimiter(rate.Limit(d.config.DrainRate), d.config.BatchSize)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		events, err := d.queue.Dequeue(ctx, d.config.BatchSize)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("dequeue failed", "error", err)
		}
		if len(events) == 0 {
			timer.Reset(d.config.PollInterval)
			continue
		}

		for _, event := range events {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			d.handle(ctx, event)
		}
		timer.Reset(0)
	}
}

func (d *Drainer) handle(ctx context.Context, event *core.ChangeEvent) {
	if event == nil {
		return
	}
	failed := false
	for _, h := range d.handlers {
		if err := h(ctx, event); err != nil {
			failed = true
			d.logger.Error("handler failed", "table", event.Table, "op", event.Op, "revision", event.Revision, "error", err)
		}
	}

	d.mu.Lock()
	d.stats.Handled++
	if failed {
		d.stats.Failed++
	}
	d.mu.Unlock()
}

// LogHandler logs every event at debug level.
func LogHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = logging.WithComponent("changefeed")
	}
	return func(_ context.Context, event *core.ChangeEvent) error {
		logger.Debug("change", "table", event.Table, "op", event.Op, "row", event.RowID, "column", event.Column, "revision", event.Revision)
		return nil
	}
}
