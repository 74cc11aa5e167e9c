package read

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/schema"
)

// CacheHandler reads and writes single rows in a KV store, keyed by table and
// primary key.
type CacheHandler struct {
	kvStore    core.KVStore
	translator *schema.Translator
	keyBuilder *KeyBuilder
	ttl        time.Duration
	logger     *slog.Logger
}

// NewCacheHandler creates a new cache handler. A zero ttl stores rows without expiry.
func NewCacheHandler(kvStore core.KVStore, namespace string, ttl time.Duration, logger *slog.Logger) *CacheHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CacheHandler{
		kvStore:    kvStore,
		translator: schema.NewTranslator(),
		keyBuilder: NewKeyBuilder(namespace),
		ttl:        ttl,
		logger:     logger,
	}
}

// Keys returns the handler's key builder.
func (ch *CacheHandler) Keys() *KeyBuilder {
	return ch.keyBuilder
}

// Read returns the cached row for key. A miss yields an error wrapping
// core.ErrKeyNotFound.
func (ch *CacheHandler) Read(ctx context.Context, key interface{}, cs *core.ColumnSchema) (core.Row, error) {
	cacheKey := ch.keyBuilder.BuildKey(cs.TableName, key)

	value, err := ch.kvStore.Get(ctx, cacheKey)
	if err != nil {
		return nil, err
	}

	row, err := ch.translator.FromKV(value, cs)
	if err != nil {
		// A row we cannot decode is as good as absent; drop it so the next
		// read repopulates from the database.
		ch.logger.Warn("dropping undecodable cache entry", "key", cacheKey, "error", err)
		_ = ch.kvStore.Delete(ctx, cacheKey)
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, cacheKey)
	}
	return row, nil
}

// Write stores row under its primary key after checking it belongs to the table.
func (ch *CacheHandler) Write(ctx context.Context, row core.Row, cs *core.ColumnSchema) error {
	validator := schema.NewRowValidator(cs)
	if err := validator.ValidateRow(row, cs.PrimaryKey); err != nil {
		return fmt.Errorf("refusing to cache row: %w", err)
	}

	value, err := ch.translator.ToKV(row, cs)
	if err != nil {
		return err
	}

	cacheKey := ch.keyBuilder.BuildKey(cs.TableName, row[cs.PrimaryKey])
	if err := ch.kvStore.Set(ctx, cacheKey, value, ch.ttl); err != nil {
		return fmt.Errorf("failed to populate cache: %w", err)
	}
	return nil
}

// Invalidate removes the cached row for key.
func (ch *CacheHandler) Invalidate(ctx context.Context, table string, key interface{}) error {
	return ch.kvStore.Delete(ctx, ch.keyBuilder.BuildKey(table, key))
}

// Exists checks if a key exists in the cache.
func (ch *CacheHandler) Exists(ctx context.Context, table string, key interface{}) (bool, error) {
	return ch.kvStore.Exists(ctx, ch.keyBuilder.BuildKey(table, key))
}

// IsMiss reports whether err is a cache miss rather than a store failure.
func IsMiss(err error) bool {
	return errors.Is(err, core.ErrKeyNotFound)
}

// KeyBuilder builds cache keys in the format: {namespace}:{table}:{primary_key_value}
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder creates a new key builder.
func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// BuildKey constructs a cache key for the given table and primary key value.
func (kb *KeyBuilder) BuildKey(tableName string, key interface{}) string {
	keyStr := fmt.Sprintf("%v", key)
	if b, ok := key.([]byte); ok {
		keyStr = string(b)
	}
	if kb.namespace != "" {
		return fmt.Sprintf("%s:%s:%s", kb.namespace, tableName, keyStr)
	}
	return fmt.Sprintf("%s:%s", tableName, keyStr)
}
