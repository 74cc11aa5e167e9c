package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/registry"
)

// RedisTimeouts bounds the network operations of a Redis client.
type RedisTimeouts struct {
	Dial  time.Duration
	Read  time.Duration
	Write time.Duration
}

// NewRedisClient connects to a single node, or to a cluster when ClusterMode
// is set, and pings it.
func NewRedisClient(ctx context.Context, cfg registry.RedisConfig, timeouts RedisTimeouts) (redis.UniversalClient, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	var client redis.UniversalClient
	if cfg.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Endpoints,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  timeouts.Dial,
			ReadTimeout:  timeouts.Read,
			WriteTimeout: timeouts.Write,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Endpoints[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  timeouts.Dial,
			ReadTimeout:  timeouts.Read,
			WriteTimeout: timeouts.Write,
		})
	}

	dial := timeouts.Dial
	if dial <= 0 {
		dial = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisKVStore implements core.KVStore on Redis strings.
type RedisKVStore struct {
	client redis.UniversalClient
	logger *slog.Logger
	closed atomic.Bool
}

var _ core.KVStore = (*RedisKVStore)(nil)

// NewRedisKVStore wraps a connected client.
func NewRedisKVStore(client redis.UniversalClient, logger *slog.Logger) *RedisKVStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisKVStore{client: client, logger: logger}
}

// Get retrieves a value by key from the store.
func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("cache miss", "key", key)
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	r.logger.Debug("cache hit", "key", key, "bytes", len(val))
	return val, nil
}

// Set stores a key-value pair. A zero TTL means no expiration.
func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	r.logger.Debug("cache set", "key", key, "bytes", len(value), "ttl", ttl)
	return nil
}

// Delete removes a key from the store.
func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed.Load() {
		return false, ErrClosed
	}
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// Close closes the connection to the KV store.
func (r *RedisKVStore) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}

// Client returns the underlying Redis client.
func (r *RedisKVStore) Client() redis.UniversalClient {
	return r.client
}

// RedisFactory creates Redis-backed stores.
type RedisFactory struct{}

func (RedisFactory) Type() string {
	return "redis"
}

// ValidateRedis checks connection settings shared by the Redis cache and feed.
func ValidateRedis(cfg registry.RedisConfig) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if cfg.DB < 0 || cfg.DB > 15 {
		return fmt.Errorf("redis db must be between 0 and 15, got: %d", cfg.DB)
	}
	if cfg.ClusterMode && cfg.DB != 0 {
		return fmt.Errorf("redis cluster mode only supports db 0")
	}
	if cfg.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", cfg.PoolSize)
	}
	if cfg.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", cfg.MinIdleConns)
	}
	return nil
}

func (RedisFactory) Validate(config registry.CacheConfig) error {
	if err := ValidateRedis(config.Redis); err != nil {
		return err
	}
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	if config.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", config.ReadTimeout)
	}
	if config.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", config.WriteTimeout)
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", config.MaxRetries)
	}
	return nil
}

func (RedisFactory) Create(ctx context.Context, config registry.CacheConfig, logger *slog.Logger) (core.KVStore, error) {
	client, err := NewRedisClient(ctx, config.Redis, RedisTimeouts{
		Dial:  config.DialTimeout,
		Read:  config.ReadTimeout,
		Write: config.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis KV store: %w", err)
	}
	logger.Info("connected to redis", "endpoints", config.Redis.Endpoints, "cluster", config.Redis.ClusterMode)
	return NewRedisKVStore(client, logger), nil
}

func init() {
	RegisterFactory(RedisFactory{})
}
