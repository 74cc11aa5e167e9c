package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/registry"
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("kv store is closed")

// Factory is the strategy interface for creating KV store implementations.
// Each backend registers one from init.
type Factory interface {
	// Type returns the cache type this factory serves ("redis", "dynamodb", "memory").
	Type() string

	// Validate checks the backend-specific part of the cache configuration.
	Validate(config registry.CacheConfig) error

	// Create builds a connected store.
	Create(ctx context.Context, config registry.CacheConfig, logger *slog.Logger) (core.KVStore, error)
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a KV store factory and its configuration validator.
// Panics if factory is nil, has no type, or is already registered.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		registryMutex.Unlock()
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
	registryMutex.Unlock()

	registry.RegisterValidator(cacheValidator{factory})
}

// cacheValidator exposes a factory's Validate to the config manager.
type cacheValidator struct {
	factory Factory
}

func (v cacheValidator) Section() string { return "cache" }

func (v cacheValidator) Type() string { return v.factory.Type() }

func (v cacheValidator) Validate(config *registry.Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	return v.factory.Validate(config.Cache)
}

// Create builds the store selected by config.Type.
func Create(ctx context.Context, config registry.CacheConfig, logger *slog.Logger) (core.KVStore, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("kvstore type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported KV store type: %s (available: %v)", config.Type, Types())
	}
	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory.Create(ctx, config, logger.With("kvstore", config.Type))
}

// Types returns the registered KV store types in sorted order.
func Types() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a KV store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}
