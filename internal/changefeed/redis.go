package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/kvstore"
	"github.com/rzpsarthak13/depository/internal/registry"
)

// RedisFeed keeps changes in a Redis list: RPUSH to publish, LPOP to consume.
type RedisFeed struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
	closed atomic.Bool
}

var _ core.ChangeFeed = (*RedisFeed)(nil)

// NewRedisFeed uses the list stored at key.
func NewRedisFeed(client redis.UniversalClient, key string, logger *slog.Logger) *RedisFeed {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisFeed{client: client, key: key, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, change *core.Change) error {
	if f.closed.Load() {
		return ErrFeedClosed
	}
	if err := validateChange(change); err != nil {
		return err
	}

	data, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := f.client.RPush(ctx, f.key, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change to %s: %w", f.key, err)
	}
	return nil
}

// Consume pops up to max changes. Entries that fail to decode are logged and skipped.
func (f *RedisFeed) Consume(ctx context.Context, max int) ([]*core.Change, error) {
	if f.closed.Load() {
		return nil, ErrFeedClosed
	}
	if max <= 0 {
		max = 100
	}

	values, err := f.client.LPopCount(ctx, f.key, max).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume changes from %s: %w", f.key, err)
	}

	changes := make([]*core.Change, 0, len(values))
	for _, v := range values {
		change, err := decodeChange([]byte(v))
		if err != nil {
			f.logger.Warn("skipping malformed change", "key", f.key, "error", err)
			continue
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// Size returns the list length, or 0 when Redis cannot be reached.
func (f *RedisFeed) Size() int {
	if f.closed.Load() {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n, err := f.client.LLen(ctx, f.key).Result()
	if err != nil {
		f.logger.Debug("failed to read feed length", "key", f.key, "error", err)
		return 0
	}
	return int(n)
}

func (f *RedisFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	return f.client.Close()
}

// RedisFactory creates Redis list feeds.
type RedisFactory struct{}

func (RedisFactory) Type() string {
	return "redis"
}

func (RedisFactory) Validate(config registry.FeedConfig) error {
	if err := kvstore.ValidateRedis(config.Redis); err != nil {
		return err
	}
	if config.RedisKey == "" {
		return fmt.Errorf("redis_key is required")
	}
	return nil
}

func (RedisFactory) Create(ctx context.Context, config registry.FeedConfig, logger *slog.Logger) (core.ChangeFeed, error) {
	client, err := kvstore.NewRedisClient(ctx, config.Redis, kvstore.RedisTimeouts{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis change feed: %w", err)
	}
	logger.Info("connected to redis change feed", "endpoints", config.Redis.Endpoints, "key", config.RedisKey)
	return NewRedisFeed(client, config.RedisKey, logger), nil
}

func init() {
	RegisterFactory(RedisFactory{})
}
