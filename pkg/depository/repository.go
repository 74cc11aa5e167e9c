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
	"github.com/rzpsarthak13/depository/internal/dataset"
	"github.com/rzpsarthak13/depository/internal/read"
)

// ScopeFunc builds a reusable query fragment on top of a repository's base query.
type ScopeFunc func(base *Result, args ...interface{}) *Result

// Repository persists and loads the records of one model.
type Repository struct {
	config *RecordConfig
	cache  *read.FallbackHandler
	feed   core.ChangeFeed
	logger *slog.Logger

	mu     sync.RWMutex
	scopes map[string]ScopeFunc
}

// New builds a repository from cfg.
func New(cfg Config) (*Repository, error) {
	rc, err := NewRecordConfig(cfg)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		config: rc,
		feed:   cfg.Feed,
		logger: rc.Logger(),
		scopes: make(map[string]ScopeFunc),
	}
	if cfg.Cache != nil {
		handler := read.NewCacheHandler(cfg.Cache, cfg.CacheNamespace, cfg.CacheTTL, r.logger)
		r.cache = read.NewFallbackHandler(handler, r.logger)
	}
	return r, nil
}

// Config returns the repository's resolved configuration.
func (r *Repository) Config() *RecordConfig {
	return r.config
}

// Query returns the base query over the current dataset.
func (r *Repository) Query() *Result {
	ds, err := r.config.Dataset()
	return newResult(r, ds, err)
}

func (r *Repository) Where(conditions ...interface{}) *Result {
	return r.Query().Where(conditions...)
}

func (r *Repository) Apply(op string, args ...interface{}) *Result {
	return r.Query().Apply(op, args...)
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.Query().Count(ctx)
}

// Save inserts rec when its primary key is nil and updates the row with
// that key otherwise. The generated key of an insert is set on rec.
func (r *Repository) Save(ctx context.Context, rec Record) (Record, error) {
	pk := r.config.PrimaryKey()

	raw, err := Pack(ctx, r.config, rec)
	if err != nil {
		return nil, err
	}
	ds, err := r.config.Dataset()
	if err != nil {
		return nil, err
	}

	op := core.OperationUpdate
	key := rec.Get(pk)
	if key == nil {
		op = core.OperationCreate
		delete(raw, pk)
		key, err = ds.Returning(pk).Insert(ctx, raw)
		if err != nil {
			return nil, err
		}
		rec.Set(pk, key)
		raw[pk] = key
	} else {
		if _, err := ds.Where(dataset.Eq{pk: key}).Update(ctx, raw); err != nil {
			return nil, err
		}
	}

	switch {
	case r.cache == nil:
	case r.config.Unscoped():
		r.refreshCache(ctx, key, raw)
	default:
		r.evict(ctx, []interface{}{key})
	}
	if err := r.publish(ctx, op, key, raw); err != nil {
		return rec, err
	}
	return rec, nil
}

// Create builds a record from attrs and saves it.
func (r *Repository) Create(ctx context.Context, attrs Row) (Record, error) {
	rec, err := r.config.Factory().New(attrs)
	if err != nil {
		return nil, err
	}
	return r.Save(ctx, rec)
}

// Find returns the record whose primary key is key. A nil key never matches.
func (r *Repository) Find(ctx context.Context, key interface{}) (Record, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", ErrRecordNotFound)
	}

	load := func(ctx context.Context) (core.Row, error) {
		return r.Where(dataset.Eq{r.config.PrimaryKey(): key}).RawFirst(ctx)
	}

	var row Row
	var err error
	if r.cache != nil && r.config.Unscoped() {
		cs, cerr := r.cacheSchema(ctx)
		if cerr != nil {
			return nil, cerr
		}
		row, err = r.cache.ReadThrough(ctx, key, cs, load)
	} else {
		row, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s = %v", ErrRecordNotFound, r.config.PrimaryKey(), key)
	}
	return r.ConvertRow(ctx, row)
}

// FindBy returns the first record whose attr equals value, or nil when none does.
func (r *Repository) FindBy(ctx context.Context, attr string, value interface{}) (Record, error) {
	return r.Where(dataset.Eq{attr: value}).First(ctx)
}

// Update finds the record with key, lets mutate change it and saves it.
func (r *Repository) Update(ctx context.Context, key interface{}, mutate func(Record) error) (Record, error) {
	rec, err := r.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := mutate(rec); err != nil {
		return nil, err
	}
	return r.Save(ctx, rec)
}

// Delete removes the row whose primary key is key. Deleting a missing key
// is not an error.
func (r *Repository) Delete(ctx context.Context, key interface{}) error {
	n, err := r.Where(dataset.Eq{r.config.PrimaryKey(): key}).Delete(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return r.publish(ctx, core.OperationDelete, key, nil)
}

// Convert turns a Row into a Record and a []Row into a []Record.
func (r *Repository) Convert(ctx context.Context, input interface{}) (interface{}, error) {
	switch v := input.(type) {
	case Row:
		return r.ConvertRow(ctx, v)
	case map[string]interface{}:
		return r.ConvertRow(ctx, Row(v))
	case []Row:
		return r.ConvertRows(ctx, v)
	case []map[string]interface{}:
		rows := make([]Row, len(v))
		for i, m := range v {
			rows[i] = Row(m)
		}
		return r.ConvertRows(ctx, rows)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownConversionType, input)
	}
}

// ConvertRow unpacks row and builds a record from it. Every column of the
// row must be a field of the model.
func (r *Repository) ConvertRow(ctx context.Context, row Row) (Record, error) {
	factory := r.config.Factory()

	known := make(map[string]struct{})
	for _, f := range factory.Fields() {
		known[f] = struct{}{}
	}
	var unknown []string
	for k := range row {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: row has columns %v the model does not declare", ErrUnknownConversionType, unknown)
	}

	attrs, err := Unpack(ctx, r.config, row.Clone())
	if err != nil {
		return nil, err
	}
	return factory.New(attrs)
}

func (r *Repository) ConvertRows(ctx context.Context, rows []Row) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := r.ConvertRow(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// NamedScope registers fn under name. Registering a name again replaces it.
func (r *Repository) NamedScope(name string, fn ScopeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes[name] = fn
}

// Scope evaluates the named scope against the base query.
func (r *Repository) Scope(name string, args ...interface{}) *Result {
	r.mu.RLock()
	fn, ok := r.scopes[name]
	r.mu.RUnlock()
	if !ok {
		return newResult(r, nil, fmt.Errorf("%w: %q", ErrUnknownScope, name))
	}
	return fn(r.Query(), args...)
}

// Scopes lists the registered scope names, sorted.
func (r *Repository) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scopes))
	for name := range r.scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JoinProjection selects every model field qualified with alias, then
// inner-joins table on condition.
func (r *Repository) JoinProjection(alias string, table, condition interface{}) *Result {
	fields := r.config.Factory().Fields()
	cols := make([]interface{}, len(fields))
	for i, f := range fields {
		cols[i] = dataset.I(alias + "." + f)
	}
	return r.Query().Select(cols...).Join(table, condition)
}

func (r *Repository) tableName(ctx context.Context) (string, error) {
	cs, err := r.config.Schema(ctx)
	if err != nil {
		return "", err
	}
	return cs.TableName, nil
}

// cacheSchema is the table schema keyed on the repository's primary key.
func (r *Repository) cacheSchema(ctx context.Context) (*core.ColumnSchema, error) {
	cs, err := r.config.Schema(ctx)
	if err != nil {
		return nil, err
	}
	keyed := *cs
	keyed.PrimaryKey = r.config.PrimaryKey()
	return &keyed, nil
}

func (r *Repository) refreshCache(ctx context.Context, key interface{}, raw Row) {
	cs, err := r.cacheSchema(ctx)
	if err != nil {
		r.logger.Warn("cannot refresh cached record", "key", key, "error", err)
		return
	}
	if err := r.cache.Cache().Write(ctx, raw, cs); err != nil {
		r.logger.Warn("failed to refresh cached record, evicting", "table", cs.TableName, "key", key, "error", err)
		if err := r.cache.Cache().Invalidate(ctx, cs.TableName, key); err != nil && !errors.Is(err, core.ErrKeyNotFound) {
			r.logger.Warn("failed to evict cached record", "table", cs.TableName, "key", key, "error", err)
		}
	}
}

// evict drops the cached rows of keys. Failures are logged; the entry then
// lives until its TTL runs out.
func (r *Repository) evict(ctx context.Context, keys []interface{}) {
	if r == nil || r.cache == nil || len(keys) == 0 {
		return
	}
	table, err := r.tableName(ctx)
	if err != nil {
		r.logger.Warn("cannot evict cached records", "keys", len(keys), "error", err)
		return
	}
	for _, key := range keys {
		if err := r.cache.Cache().Invalidate(ctx, table, key); err != nil && !errors.Is(err, core.ErrKeyNotFound) {
			r.logger.Warn("failed to evict cached record", "table", table, "key", key, "error", err)
		}
	}
}

func (r *Repository) publish(ctx context.Context, op core.OperationType, key interface{}, data Row) error {
	if r.feed == nil {
		return nil
	}
	table, err := r.tableName(ctx)
	if err != nil {
		return err
	}
	if err := r.feed.Publish(ctx, changefeed.NewChange(table, op, key, data.Clone())); err != nil {
		return fmt.Errorf("record written but change not published: %w", err)
	}
	return nil
}
