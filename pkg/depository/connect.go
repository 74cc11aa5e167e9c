package depository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rzpsarthak13/depository/internal/changefeed"
	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/database"
	"github.com/rzpsarthak13/depository/internal/kvstore"
	"github.com/rzpsarthak13/depository/internal/registry"
)

type (
	// Settings is the process configuration read by LoadConfig.
	Settings = registry.Config
	// DatabaseSettings describes one named connection of an environment.
	DatabaseSettings = registry.DatabaseConfig
	// Change is one event of the change feed.
	Change = core.Change
	// ChangeHandler processes changes handed out by a Drainer.
	ChangeHandler = changefeed.Handler
	// Drainer consumes the change feed at a bounded rate.
	Drainer = changefeed.Drainer
)

// DefaultSettings returns the configuration used when nothing is loaded.
func DefaultSettings() *Settings {
	return registry.DefaultConfig()
}

// LoadConfig reads path (YAML or JSON, skipped when empty) and overlays
// DEPOSITORY_* environment variables.
func LoadConfig(path string) (*Settings, error) {
	cm := registry.NewConfigManager()
	if path != "" {
		if err := cm.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cm.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cm.GetConfig(), nil
}

// Connection holds what Connect opened: the active environment's databases,
// registered process-wide, plus the optional record cache and change feed.
type Connection struct {
	mu       sync.Mutex
	settings *Settings
	names    []string
	dbs      map[string]*DB
	cache    core.KVStore
	feed     core.ChangeFeed
	logger   *slog.Logger
	closed   bool
}

// Connect opens and registers every database of the active environment and
// creates the configured cache and feed. On failure everything opened so
// far is closed again.
func Connect(ctx context.Context, settings *Settings, logger *slog.Logger) (*Connection, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	if err := registry.ValidateConfig(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn := &Connection{
		settings: settings,
		dbs:      make(map[string]*DB),
		logger:   logger,
	}

	active := settings.Databases[settings.Environment]
	names := make([]string, 0, len(active))
	for name := range active {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		opts := active[name].Options()
		opts.Logger = logger.With("database", name)
		db, err := database.Open(ctx, opts)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to open database %s: %w", name, err)
		}
		conn.dbs[name] = db
		if err := RegisterDatabase(name, db); err != nil {
			_ = conn.Close()
			return nil, err
		}
		conn.names = append(conn.names, name)
		logger.Info("database connected", "name", name, "driver", opts.Driver, "environment", settings.Environment)
	}

	if settings.Cache.Type != "" && settings.Cache.Type != "none" {
		cache, err := kvstore.Create(ctx, settings.Cache, logger)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		conn.cache = cache
		logger.Info("record cache enabled", "type", settings.Cache.Type, "namespace", settings.Cache.Namespace)
	}

	if settings.Feed.Type != "" && settings.Feed.Type != "none" {
		feed, err := changefeed.Create(ctx, settings.Feed, logger)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to create change feed: %w", err)
		}
		conn.feed = feed
		logger.Info("change feed enabled", "type", settings.Feed.Type)
	}

	return conn, nil
}

// Databases lists the names Connect registered.
func (c *Connection) Databases() []string {
	return append([]string(nil), c.names...)
}

func (c *Connection) Cache() core.KVStore { return c.cache }

func (c *Connection) Feed() core.ChangeFeed { return c.feed }

// Bind fills the cache, feed and logger of cfg from the connection where
// cfg leaves them unset.
func (c *Connection) Bind(cfg Config) Config {
	if cfg.Cache == nil && c.cache != nil {
		cfg.Cache = c.cache
		if cfg.CacheNamespace == "" {
			cfg.CacheNamespace = c.settings.Cache.Namespace
		}
		if cfg.CacheTTL == 0 {
			cfg.CacheTTL = c.settings.Cache.TTL
		}
	}
	if cfg.Feed == nil {
		cfg.Feed = c.feed
	}
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	return cfg
}

// Repository builds a repository bound to this connection.
func (c *Connection) Repository(cfg Config) (*Repository, error) {
	return New(c.Bind(cfg))
}

// NewDrainer returns a drainer over the connection's feed.
func (c *Connection) NewDrainer(handler ChangeHandler) (*Drainer, error) {
	if c.feed == nil {
		return nil, fmt.Errorf("no change feed configured")
	}
	return changefeed.NewDrainer(c.feed, handler, c.settings.Drainer, c.logger), nil
}

// Close closes the feed, the cache and every database Connect registered,
// and removes those registrations.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.feed != nil {
		if err := c.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close feed: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	for _, name := range c.names {
		_ = registry.Default().Unregister(name)
	}
	for name, db := range c.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
