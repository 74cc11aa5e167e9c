package read

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/rzpsarthak13/depository/internal/core"
)

// Loader fetches a row from the database. It returns a nil row when no row
// matches.
type Loader func(ctx context.Context) (core.Row, error)

// FallbackHandler serves reads from the cache and falls back to the database
// on a miss, populating the cache with what it found. Concurrent misses for
// the same key share one database read.
type FallbackHandler struct {
	cache  *CacheHandler
	group  singleflight.Group
	logger *slog.Logger
}

// NewFallbackHandler creates a new fallback handler.
func NewFallbackHandler(cache *CacheHandler, logger *slog.Logger) *FallbackHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FallbackHandler{cache: cache, logger: logger}
}

// Cache returns the underlying cache handler.
func (fh *FallbackHandler) Cache() *CacheHandler {
	return fh.cache
}

// ReadThrough returns the row for key, from the cache when present and from
// load otherwise. Cache failures are logged and never fail the read. The
// returned row is owned by the caller.
func (fh *FallbackHandler) ReadThrough(ctx context.Context, key interface{}, cs *core.ColumnSchema, load Loader) (core.Row, error) {
	cacheKey := fh.cache.Keys().BuildKey(cs.TableName, key)

	v, err, shared := fh.group.Do(cacheKey, func() (interface{}, error) {
		row, err := fh.cache.Read(ctx, key, cs)
		if err == nil {
			return row, nil
		}
		if !IsMiss(err) {
			fh.logger.Warn("cache read failed, falling back to database", "key", cacheKey, "error", err)
		}

		row, err = load(ctx)
		if err != nil || row == nil {
			return row, err
		}
		if err := fh.cache.Write(ctx, row, cs); err != nil {
			fh.logger.Warn("failed to populate cache", "key", cacheKey, "error", err)
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		fh.logger.Debug("collapsed concurrent read", "key", cacheKey)
	}

	row, _ := v.(core.Row)
	if row == nil {
		return nil, nil
	}
	return row.Clone(), nil
}
