package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/dataset"
	"github.com/rzpsarthak13/depository/internal/schema"
)

// ErrClosed is returned by every operation on a closed DB.
var ErrClosed = errors.New("database is closed")

// Options configures a connection.
type Options struct {
	// Driver selects a registered driver ("mysql", "postgres", "sqlite").
	Driver string
	// DSN is used as-is when set; otherwise it is built from the fields below.
	DSN      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectionTimeout time.Duration

	Logger *slog.Logger
}

// DB is a connection pool bound to one driver. It implements dataset.Executor.
type DB struct {
	db     *sql.DB
	driver Driver
	logger *slog.Logger
	mapper *schema.TypeMapper

	mu     sync.RWMutex
	closed bool
}

var _ dataset.Executor = (*DB)(nil)

// Open connects using the driver named in opts and pings the server.
func Open(ctx context.Context, opts Options) (*DB, error) {
	driver, err := LookupDriver(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := driver.DSN(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid %s connection options: %w", opts.Driver, err)
	}

	sqlDB, err := sql.Open(driver.SQLDriver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	timeout := opts.ConnectionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return wrap(sqlDB, driver, opts.Logger), nil
}

// New wraps an existing pool. driverName selects the dialect and
// introspection queries.
func New(sqlDB *sql.DB, driverName string, logger *slog.Logger) (*DB, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sql.DB cannot be nil")
	}
	driver, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}
	return wrap(sqlDB, driver, logger), nil
}

func wrap(sqlDB *sql.DB, driver Driver, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DB{
		db:     sqlDB,
		driver: driver,
		logger: logger.With("dialect", driver.Dialect().Name),
		mapper: schema.NewTypeMapper(),
	}
}

func (d *DB) checkOpen() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Dialect returns the SQL dialect of the driver.
func (d *DB) Dialect() *dataset.Dialect {
	return d.driver.Dialect()
}

// From returns a dataset over table.
func (d *DB) From(table string) *dataset.Dataset {
	return dataset.New(d, table)
}

// Query executes a statement returning rows.
func (d *DB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	d.logger.Debug("executing query", "query", query, "args", args)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		d.logger.Error("query failed", "query", query, "error", err)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// Exec executes a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	d.logger.Debug("executing statement", "query", query, "args", args)
	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		d.logger.Error("statement failed", "query", query, "error", err)
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return result, nil
}

// Columns describes table, classifying each column's type.
func (d *DB) Columns(ctx context.Context, table string) (*core.ColumnSchema, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	s, err := d.driver.Columns(ctx, d.db, table)
	if err != nil {
		return nil, err
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist or has no columns", table)
	}
	for i := range s.Columns {
		s.Columns[i].Kind = d.mapper.Classify(s.Columns[i].Type)
	}
	return s, nil
}

// Tables lists the base tables of the database.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.driver.Tables(ctx, d.db)
}

// Ping verifies the connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.db.PingContext(ctx)
}

// Close closes the pool. Closing twice is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}
