package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/registry"
)

// Handler processes one change. A returned error sends the change back to
// the feed until its retry budget is spent.
type Handler func(ctx context.Context, change *core.Change) error

// DrainerStats counts what a drainer has done since it was created.
type DrainerStats struct {
	Processed int64
	Retried   int64
	Dropped   int64
}

// Drainer consumes a change feed at a bounded rate and hands each change to
// a Handler.
type Drainer struct {
	feed    core.ChangeFeed
	handler Handler
	config  registry.DrainerConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	processed atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
}

// NewDrainer creates a drainer. Zero config values take the defaults.
func NewDrainer(feed core.ChangeFeed, handler Handler, config registry.DrainerConfig, logger *slog.Logger) *Drainer {
	defaults := registry.DefaultConfig().Drainer
	if config.Rate <= 0 {
		config.Rate = defaults.Rate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Drainer{
		feed:    feed,
		handler: handler,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), 1),
		logger:  logger,
	}
}

// Start runs the drain loop in a goroutine until Stop is called or ctx ends.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("drainer is already running")
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go d.run(ctx, d.stopCh, d.doneCh)
	d.logger.Info("drainer started", "rate", d.config.Rate, "batch_size", d.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the change in progress to finish.
func (d *Drainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
	d.logger.Info("drainer stopped", "processed", d.processed.Load(), "dropped", d.dropped.Load())
}

func (d *Drainer) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Drainer) Stats() DrainerStats {
	return DrainerStats{
		Processed: d.processed.Load(),
		Retried:   d.retried.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Drainer) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return
		case <-timer.C:
		}

		n, err := d.DrainOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("drain failed", "error", err)
		}

		wait := d.config.PollInterval
		if n > 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// DrainOnce consumes a single batch and returns how many changes it handled.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	changes, err := d.feed.Consume(ctx, d.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to consume changes: %w", err)
	}

	for i, change := range changes {
		if err := d.limiter.Wait(ctx); err != nil {
			// put back what we took but did not handle
			for _, rest := range changes[i:] {
				if perr := d.feed.Publish(context.WithoutCancel(ctx), rest); perr != nil {
					d.logger.Error("lost change while stopping", "id", rest.ID, "error", perr)
				}
			}
			return i, err
		}
		d.handle(ctx, change)
	}
	return len(changes), nil
}

// Drain consumes until the feed reports nothing pending.
func (d *Drainer) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := d.DrainOnce(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

func (d *Drainer) handle(ctx context.Context, change *core.Change) {
	err := d.handler(ctx, change)
	if err == nil {
		d.processed.Add(1)
		d.logger.Debug("handled change",
			"id", change.ID,
			"table", change.Table,
			"operation", change.Operation,
			"key", change.Key,
		)
		return
	}

	if change.RetryCount >= d.config.MaxRetries {
		d.dropped.Add(1)
		d.logger.Error("giving up on change",
			"id", change.ID,
			"table", change.Table,
			"retries", change.RetryCount,
			"error", err,
		)
		return
	}

	change.RetryCount++
	if perr := d.feed.Publish(ctx, change); perr != nil {
		d.dropped.Add(1)
		d.logger.Error("failed to requeue change", "id", change.ID, "error", perr)
		return
	}
	d.retried.Add(1)
	d.logger.Warn("requeued change", "id", change.ID, "retry", change.RetryCount, "error", err)
}
