package database

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/dataset"
)

func init() {
	RegisterDriver("sqlite", sqliteDriver{})
	RegisterDriver("sqlite3", sqliteDriver{})
}

type sqliteDriver struct{}

func (sqliteDriver) SQLDriver() string { return "sqlite" }

func (sqliteDriver) Dialect() *dataset.Dialect { return dataset.SQLite }

// DSN uses the DSN field, falling back to Database as a file path.
func (sqliteDriver) DSN(opts Options) (string, error) {
	switch {
	case opts.DSN != "":
		return opts.DSN, nil
	case opts.Database != "":
		return opts.Database, nil
	default:
		return "", fmt.Errorf("sqlite needs a DSN or database path")
	}
}

func (sqliteDriver) Columns(ctx context.Context, q Querier, table string) (*core.ColumnSchema, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	s := &core.ColumnSchema{TableName: table}
	for rows.Next() {
		var name, colType string
		var notNull, pk int
		if err := rows.Scan(&name, &colType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := core.Column{
			Name:       name,
			Type:       colType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		}
		// pk is the 1-based position within the key; the first one names it
		if pk == 1 {
			s.PrimaryKey = name
		}
		s.Columns = append(s.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return s, nil
}

func (sqliteDriver) Tables(ctx context.Context, q Querier) ([]string, error) {
	return scanTables(ctx, q, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
}
