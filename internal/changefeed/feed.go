// Package changefeed carries core.Change events from repositories to
// out-of-band consumers such as cache warmers, audit logs or replicas.
package changefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/registry"
)

var (
	// ErrFeedClosed is returned when publishing to or consuming from a closed feed.
	ErrFeedClosed = errors.New("change feed is closed")

	// ErrFeedFull is returned when a bounded feed has no room left.
	ErrFeedFull = errors.New("change feed is full")

	// ErrInvalidChange is returned when a change lacks a table or operation.
	ErrInvalidChange = errors.New("invalid change")
)

// NewChange builds a change event stamped with a fresh ID and the current time.
func NewChange(table string, op core.OperationType, key interface{}, data core.Row) *core.Change {
	return &core.Change{
		ID:        uuid.NewString(),
		Table:     table,
		Operation: op,
		Key:       key,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func validateChange(change *core.Change) error {
	if change == nil {
		return fmt.Errorf("%w: nil", ErrInvalidChange)
	}
	if change.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidChange)
	}
	switch change.Operation {
	case core.OperationCreate, core.OperationUpdate, core.OperationDelete:
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidChange, change.Operation)
	}
	return nil
}

func encodeChange(change *core.Change) ([]byte, error) {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change: %w", err)
	}
	return data, nil
}

// decodeChange keeps numbers as json.Number so integer keys survive the trip.
func decodeChange(data []byte) (*core.Change, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var change core.Change
	if err := decoder.Decode(&change); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change: %w", err)
	}
	return &change, nil
}

// Factory creates change feed implementations of one type.
type Factory interface {
	Type() string
	Validate(config registry.FeedConfig) error
	Create(ctx context.Context, config registry.FeedConfig, logger *slog.Logger) (core.ChangeFeed, error)
}

var (
	factories   = make(map[string]Factory)
	factoriesMu sync.RWMutex
)

// RegisterFactory registers a feed factory and its configuration validator.
// Panics if factory is nil or its type is already registered.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}

	factoriesMu.Lock()
	if _, exists := factories[factory.Type()]; exists {
		factoriesMu.Unlock()
		panic(fmt.Sprintf("feed factory for type %q is already registered", factory.Type()))
	}
	factories[factory.Type()] = factory
	factoriesMu.Unlock()

	registry.RegisterValidator(feedValidator{factory})
}

type feedValidator struct {
	factory Factory
}

func (v feedValidator) Section() string { return "feed" }

func (v feedValidator) Type() string { return v.factory.Type() }

func (v feedValidator) Validate(config *registry.Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	return v.factory.Validate(config.Feed)
}

// Create builds the feed selected by config.Type.
func Create(ctx context.Context, config registry.FeedConfig, logger *slog.Logger) (core.ChangeFeed, error) {
	factoriesMu.RLock()
	factory, exists := factories[config.Type]
	factoriesMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported change feed type: %q (available: %v)", config.Type, Types())
	}
	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s feed: %w", config.Type, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory.Create(ctx, config, logger.With("feed", config.Type))
}

// Types returns the registered feed types in sorted order.
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
