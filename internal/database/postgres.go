package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/dataset"
)

func init() {
	RegisterDriver("postgres", postgresDriver{})
	RegisterDriver("pgx", postgresDriver{})
}

type postgresDriver struct{}

func (postgresDriver) SQLDriver() string { return "pgx" }

func (postgresDriver) Dialect() *dataset.Dialect { return dataset.Postgres }

func (postgresDriver) DSN(opts Options) (string, error) {
	dsn := opts.DSN
	if dsn == "" {
		if opts.Database == "" {
			return "", fmt.Errorf("database name is required")
		}
		host := opts.Host
		if host == "" {
			host = "localhost"
		}
		port := opts.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(host, strconv.Itoa(port)),
			Path:   "/" + opts.Database,
		}
		if opts.Username != "" {
			u.User = url.UserPassword(opts.Username, opts.Password)
		}
		q := url.Values{}
		if opts.SSLMode != "" {
			q.Set("sslmode", opts.SSLMode)
		}
		if opts.ConnectionTimeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(opts.ConnectionTimeout.Seconds())))
		}
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	// reject malformed strings before database/sql defers the failure to first use
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}

func (postgresDriver) Columns(ctx context.Context, q Querier, table string) (*core.ColumnSchema, error) {
	query := `
		SELECT c.column_name, c.data_type, c.is_nullable,
			CASE WHEN k.column_name IS NULL THEN 0 ELSE 1 END
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
				AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = current_schema()
				AND tc.table_name = $1
		) k ON k.column_name = c.column_name
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position
	`
	rows, err := q.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	s := &core.ColumnSchema{TableName: table}
	for rows.Next() {
		var name, dataType, nullable string
		var pk int
		if err := rows.Scan(&name, &dataType, &nullable, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := core.Column{
			Name:       name,
			Type:       dataType,
			Nullable:   nullable == "YES",
			PrimaryKey: pk == 1,
		}
		if col.PrimaryKey && s.PrimaryKey == "" {
			s.PrimaryKey = name
		}
		s.Columns = append(s.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return s, nil
}

func (postgresDriver) Tables(ctx context.Context, q Querier) ([]string, error) {
	return scanTables(ctx, q, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
}
