package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/dataset"
)

// Querier is the subset of *sql.DB drivers need for introspection.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Driver adapts one SQL engine: how to connect to it, which dialect it
// speaks and how to describe its tables.
type Driver interface {
	// SQLDriver is the name registered with database/sql.
	SQLDriver() string
	// Dialect is the SQL dialect used to render statements.
	Dialect() *dataset.Dialect
	// DSN builds the connection string from options.
	DSN(opts Options) (string, error)
	// Columns lists the columns of table. Kind is filled in by the caller.
	Columns(ctx context.Context, q Querier, table string) (*core.ColumnSchema, error)
	// Tables lists the base tables of the connected database.
	Tables(ctx context.Context, q Querier) ([]string, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// UnknownDriverError is returned when no driver is registered under a name.
type UnknownDriverError struct {
	Name      string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown database driver %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// RegisterDriver makes a driver available under name. Registering the same
// name twice replaces the earlier driver.
func RegisterDriver(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[strings.ToLower(name)] = d
}

// LookupDriver returns the driver registered under name.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	d, ok := drivers[strings.ToLower(name)]
	driversMu.RUnlock()
	if !ok {
		return nil, &UnknownDriverError{Name: name, Available: Drivers()}
	}
	return d, nil
}

// Drivers lists the registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func scanTables(ctx context.Context, q Querier, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
