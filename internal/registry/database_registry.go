package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/depository/internal/database"
)

// ErrNotRegistered is returned when resolving a name nobody registered.
var ErrNotRegistered = errors.New("database is not registered")

// DatabaseMetadata describes a registered connection.
type DatabaseMetadata struct {
	// Name is the registry key, "default" unless configured otherwise.
	Name string

	// DB is the connection pool.
	DB *database.DB

	// RegisteredAt is when the name was first registered.
	RegisteredAt time.Time

	// UpdatedAt is when the name was last re-pointed.
	UpdatedAt time.Time
}

// DatabaseRegistry maps names to open connections.
// It is safe for concurrent use.
type DatabaseRegistry struct {
	mu  sync.RWMutex
	dbs map[string]*DatabaseMetadata
}

// NewDatabaseRegistry creates an empty registry.
func NewDatabaseRegistry() *DatabaseRegistry {
	return &DatabaseRegistry{
		dbs: make(map[string]*DatabaseMetadata),
	}
}

var defaultRegistry = NewDatabaseRegistry()

// Default returns the process-wide registry.
func Default() *DatabaseRegistry {
	return defaultRegistry
}

// Register binds name to db. Registering an existing name replaces the
// connection but keeps the original registration time.
func (r *DatabaseRegistry) Register(name string, db *database.DB) error {
	if name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if db == nil {
		return fmt.Errorf("database %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	meta := &DatabaseMetadata{Name: name, DB: db, RegisteredAt: now, UpdatedAt: now}
	if existing, ok := r.dbs[name]; ok {
		meta.RegisteredAt = existing.RegisteredAt
	}
	r.dbs[name] = meta
	return nil
}

// Resolve returns the connection registered under name.
func (r *DatabaseRegistry) Resolve(name string) (*database.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.dbs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return meta.DB, nil
}

// Metadata returns a copy of the registration for name.
func (r *DatabaseRegistry) Metadata(name string) (DatabaseMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.dbs[name]
	if !ok {
		return DatabaseMetadata{}, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return *meta, nil
}

// Unregister forgets name without closing its connection.
func (r *DatabaseRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dbs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	delete(r.dbs, name)
	return nil
}

// Names lists the registered names in sorted order.
func (r *DatabaseRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.dbs))
	for name := range r.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered names.
func (r *DatabaseRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dbs)
}

// Reset forgets every registration without closing connections.
func (r *DatabaseRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbs = make(map[string]*DatabaseMetadata)
}

// CloseAll closes every registered connection and empties the registry.
// A connection registered under several names is closed once.
func (r *DatabaseRegistry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	closed := make(map[*database.DB]bool)
	for name, meta := range r.dbs {
		if closed[meta.DB] {
			continue
		}
		closed[meta.DB] = true
		if err := meta.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	r.dbs = make(map[string]*DatabaseMetadata)
	return errors.Join(errs...)
}
