package depository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rzpsarthak13/depository/internal/core"
)

// Config enumerates every option a repository accepts.
type Config struct {
	// Model returns the factory for the repository's records. It is called
	// at most once.
	Model func() ModelFactory

	// Dataset resolves the queryable handle. It is called on every access, so
	// it may return a scoped dataset. Exactly one of Dataset and Table is set.
	Dataset func() (core.Dataset, error)

	// Table binds the repository to a table of the registered database named
	// by Database.
	Table string

	// Database names the registered database used with Table. Defaults to "default".
	Database string

	// PrimaryKey names the key attribute. Defaults to "id".
	PrimaryKey string

	// Packers and Unpackers replace the default chains when non-nil.
	Packers   []Transform
	Unpackers []Transform

	// ExtraPackers and ExtraUnpackers run after whichever chain is in force.
	ExtraPackers   []Transform
	ExtraUnpackers []Transform

	// Clock supplies "now" for timestamp stamping. Defaults to time.Now.
	Clock func() time.Time

	// Cache, when set, serves Find by primary key for table-bound repositories.
	Cache          core.KVStore
	CacheNamespace string
	CacheTTL       time.Duration

	// Feed, when set, receives a change event for every save and delete.
	Feed core.ChangeFeed

	Logger *slog.Logger
}

// RecordConfig is the resolved configuration of one repository.
type RecordConfig struct {
	mu        sync.Mutex
	model     func() ModelFactory
	factory   ModelFactory
	resolve   func() (core.Dataset, error)
	base      core.Dataset
	schema    *core.ColumnSchema
	unscoped  bool
	pk        string
	packers   []Transform
	unpackers []Transform
	clock     func() time.Time
	logger    *slog.Logger
}

// NewRecordConfig validates cfg and fills in defaults.
func NewRecordConfig(cfg Config) (*RecordConfig, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model factory is required")
	}
	if cfg.Dataset != nil && cfg.Table != "" {
		return nil, fmt.Errorf("dataset and table are mutually exclusive")
	}

	rc := &RecordConfig{
		model:  cfg.Model,
		pk:     cfg.PrimaryKey,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
	if rc.pk == "" {
		rc.pk = "id"
	}
	if rc.clock == nil {
		rc.clock = time.Now
	}
	if rc.logger == nil {
		rc.logger = slog.New(slog.DiscardHandler)
	}

	switch {
	case cfg.Dataset != nil:
		rc.resolve = cfg.Dataset
	case cfg.Table != "":
		rc.resolve = tableResolver(cfg.Database, cfg.Table)
		rc.unscoped = true
	default:
		rc.resolve = func() (core.Dataset, error) { return nil, ErrNoDatabase }
	}

	rc.packers = cfg.Packers
	if rc.packers == nil {
		rc.packers = DefaultPackers()
	}
	rc.packers = append(append([]Transform(nil), rc.packers...), cfg.ExtraPackers...)

	rc.unpackers = cfg.Unpackers
	if rc.unpackers == nil {
		rc.unpackers = DefaultUnpackers()
	}
	rc.unpackers = append(append([]Transform(nil), rc.unpackers...), cfg.ExtraUnpackers...)

	return rc, nil
}

func tableResolver(database, table string) func() (core.Dataset, error) {
	if database == "" {
		database = "default"
	}
	return func() (core.Dataset, error) {
		db, err := ResolveDatabase(database)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDatabase, err)
		}
		return db.From(table), nil
	}
}

// Factory returns the model factory, calling Config.Model on first use.
func (rc *RecordConfig) Factory() ModelFactory {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.factory == nil {
		rc.factory = rc.model()
	}
	return rc.factory
}

// Dataset resolves the current dataset.
func (rc *RecordConfig) Dataset() (core.Dataset, error) {
	rc.mu.Lock()
	resolve := rc.resolve
	rc.mu.Unlock()

	ds, err := resolve()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, ErrNoDatabase
	}
	return ds, nil
}

// Base returns the dataset as first resolved, kept until SetDataset.
func (rc *RecordConfig) Base() (core.Dataset, error) {
	rc.mu.Lock()
	base := rc.base
	rc.mu.Unlock()
	if base != nil {
		return base, nil
	}

	ds, err := rc.Dataset()
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.base == nil {
		rc.base = ds
	}
	return rc.base, nil
}

// SetDataset swaps the dataset resolver and forgets the memoized base and schema.
func (rc *RecordConfig) SetDataset(resolve func() (core.Dataset, error)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.resolve = resolve
	rc.unscoped = false
	rc.base = nil
	rc.schema = nil
}

// Schema returns the column schema of the base table, querying it once.
func (rc *RecordConfig) Schema(ctx context.Context) (*core.ColumnSchema, error) {
	rc.mu.Lock()
	cached := rc.schema
	rc.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	base, err := rc.Base()
	if err != nil {
		return nil, err
	}
	cs, err := base.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.schema == nil {
		rc.schema = cs
	}
	return rc.schema, nil
}

// Columns returns the names of the base table's columns of the given kind.
func (rc *RecordConfig) Columns(ctx context.Context, kind core.ColumnType) ([]string, error) {
	cs, err := rc.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return cs.OfType(kind), nil
}

func (rc *RecordConfig) PrimaryKey() string { return rc.pk }

func (rc *RecordConfig) Packers() []Transform { return rc.packers }

func (rc *RecordConfig) Unpackers() []Transform { return rc.unpackers }

func (rc *RecordConfig) Now() time.Time { return rc.clock() }

func (rc *RecordConfig) Logger() *slog.Logger { return rc.logger }

// Unscoped reports whether the repository is bound to a plain table.
func (rc *RecordConfig) Unscoped() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.unscoped
}
