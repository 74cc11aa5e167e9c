package database

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/dataset"
)

func init() {
	RegisterDriver("mysql", mysqlDriver{})
}

type mysqlDriver struct{}

func (mysqlDriver) SQLDriver() string { return "mysql" }

func (mysqlDriver) Dialect() *dataset.Dialect { return dataset.MySQL }

// DSN always enables parseTime so DATETIME columns scan as time.Time.
func (mysqlDriver) DSN(opts Options) (string, error) {
	var cfg *mysql.Config
	if opts.DSN != "" {
		parsed, err := mysql.ParseDSN(opts.DSN)
		if err != nil {
			return "", err
		}
		cfg = parsed
	} else {
		if opts.Database == "" {
			return "", fmt.Errorf("database name is required")
		}
		host := opts.Host
		if host == "" {
			host = "localhost"
		}
		port := opts.Port
		if port == 0 {
			port = 3306
		}
		cfg = mysql.NewConfig()
		cfg.User = opts.Username
		cfg.Passwd = opts.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		cfg.DBName = opts.Database
		if opts.ConnectionTimeout > 0 {
			cfg.Timeout = opts.ConnectionTimeout
		}
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (mysqlDriver) Columns(ctx context.Context, q Querier, table string) (*core.ColumnSchema, error) {
	query := `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	rows, err := q.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	s := &core.ColumnSchema{TableName: table}
	for rows.Next() {
		var name, colType, nullable, key string
		if err := rows.Scan(&name, &colType, &nullable, &key); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := core.Column{
			Name:       name,
			Type:       colType,
			Nullable:   nullable == "YES",
			PrimaryKey: key == "PRI",
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

func (mysqlDriver) Tables(ctx context.Context, q Querier) ([]string, error) {
	return scanTables(ctx, q, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`)
}
