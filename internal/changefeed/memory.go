package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/registry"
)

const defaultBufferSize = 10000

// MemoryFeed is a bounded in-process feed backed by a channel.
type MemoryFeed struct {
	mu     sync.RWMutex
	queue  chan *core.Change
	closed bool
}

var _ core.ChangeFeed = (*MemoryFeed)(nil)

// NewMemoryFeed creates a feed holding at most bufferSize pending changes.
func NewMemoryFeed(bufferSize int) *MemoryFeed {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &MemoryFeed{queue: make(chan *core.Change, bufferSize)}
}

// Publish appends a change without blocking; a full buffer yields ErrFeedFull.
func (f *MemoryFeed) Publish(ctx context.Context, change *core.Change) error {
	if err := validateChange(change); err != nil {
		return err
	}

	// the read lock is held across the send so Close cannot close the
	// channel underneath it
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrFeedClosed
	}

	select {
	case f.queue <- change:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFeedFull
	}
}

// Consume returns up to max pending changes in FIFO order without waiting.
func (f *MemoryFeed) Consume(ctx context.Context, max int) ([]*core.Change, error) {
	if max <= 0 {
		max = 100
	}

	changes := make([]*core.Change, 0, max)
	for len(changes) < max {
		select {
		case change, ok := <-f.queue:
			if !ok {
				if len(changes) == 0 {
					return nil, ErrFeedClosed
				}
				return changes, nil
			}
			changes = append(changes, change)
		case <-ctx.Done():
			return changes, ctx.Err()
		default:
			return changes, nil
		}
	}
	return changes, nil
}

func (f *MemoryFeed) Size() int {
	return len(f.queue)
}

// Close stops further publishing. Changes already buffered can still be consumed.
func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	close(f.queue)
	return nil
}

// MemoryFactory creates in-process feeds.
type MemoryFactory struct{}

func (MemoryFactory) Type() string {
	return "memory"
}

func (MemoryFactory) Validate(config registry.FeedConfig) error {
	if config.BufferSize < 0 {
		return fmt.Errorf("buffer_size must be non-negative, got: %d", config.BufferSize)
	}
	return nil
}

func (MemoryFactory) Create(_ context.Context, config registry.FeedConfig, logger *slog.Logger) (core.ChangeFeed, error) {
	logger.Debug("created in-memory change feed", "buffer_size", config.BufferSize)
	return NewMemoryFeed(config.BufferSize), nil
}

func init() {
	RegisterFactory(MemoryFactory{})
}
