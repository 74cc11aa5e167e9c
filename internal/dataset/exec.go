package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/schema"
)

var mapper = schema.NewTypeMapper()

// All runs the query and returns every row.
func (ds *Dataset) All(ctx context.Context) ([]core.Row, error) {
	query, args, err := ds.SQL()
	if err != nil {
		return nil, err
	}
	return ds.query(ctx, query, args)
}

func (ds *Dataset) query(ctx context.Context, query string, args []interface{}) ([]core.Row, error) {
	rows, err := ds.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]core.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	typeNames := make([]string, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, t := range types {
			typeNames[i] = t.DatabaseTypeName()
		}
	}

	var out []core.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(core.Row, len(cols))
		for i, c := range cols {
			row[c] = mapper.FromDriver(values[i], typeNames[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// First runs the query limited to one row. It returns nil when there is none.
func (ds *Dataset) First(ctx context.Context) (core.Row, error) {
	rows, err := ds.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count returns the number of rows the query yields.
func (ds *Dataset) Count(ctx context.Context) (int64, error) {
	inner := ds.open()
	inner.order = nil
	inner.lock = ""
	v, err := ds.aggregate(ctx, derivedSelect(Lit{SQL: "COUNT(*)"}, inner))
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return mapper.ToInt64(v)
}

// Min returns the smallest value of column, or nil when there are no rows.
func (ds *Dataset) Min(ctx context.Context, column string) (interface{}, error) {
	return ds.extreme(ctx, "MIN", column)
}

// Max returns the largest value of column, or nil when there are no rows.
func (ds *Dataset) Max(ctx context.Context, column string) (interface{}, error) {
	return ds.extreme(ctx, "MAX", column)
}

func (ds *Dataset) extreme(ctx context.Context, fn, column string) (interface{}, error) {
	if ds.err != nil {
		return nil, ds.err
	}
	if column == "" {
		return nil, fmt.Errorf("%s needs a column", strings.ToLower(fn))
	}

	simple := ds.raw == nil && ds.from == nil && len(ds.group) == 0 &&
		!ds.distinct && ds.limit == nil && ds.offset == nil
	if simple {
		agg := ds.clone()
		agg.selects = []Expression{function{name: fn, arg: Ident(column)}.as("v")}
		agg.order = nil
		agg.lock = ""
		return ds.aggregate(ctx, agg)
	}

	// the derived table only exposes unqualified column names
	name := column
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return ds.aggregate(ctx, derivedSelect(function{name: fn, arg: Ident(name)}, ds))
}

func (f function) as(alias string) Aliased {
	return Aliased{Expr: f, Alias: alias}
}

// derivedSelect returns SELECT expr AS v FROM (inner) AS t1.
func derivedSelect(expr Expression, inner *Dataset) *Dataset {
	return &Dataset{
		exec:    inner.exec,
		table:   inner.table,
		from:    derived{inner: selectExpr{inner}, alias: "t1"},
		selects: []Expression{Aliased{Expr: expr, Alias: "v"}},
		err:     inner.err,
	}
}

func (ds *Dataset) aggregate(ctx context.Context, agg *Dataset) (interface{}, error) {
	rows, err := agg.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0]["v"], nil
}

// Insert inserts row into the base table. It returns the generated key:
// the RETURNING column where the dialect supports it, otherwise the
// driver's last insert id.
func (ds *Dataset) Insert(ctx context.Context, row core.Row) (interface{}, error) {
	query, args, err := ds.insertSQL(row)
	if err != nil {
		return nil, err
	}

	if ds.exec.Dialect().Returning {
		if ds.returning == "" {
			_, err := ds.exec.Exec(ctx, query, args...)
			return nil, err
		}
		rows, err := ds.query(ctx, query, args)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("insert into %s returned no rows", ds.table)
		}
		return rows[0][ds.returning], nil
	}

	res, err := ds.exec.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read generated key: %w", err)
	}
	return id, nil
}

// Update sets row's columns on every matching row and returns the number of
// rows affected.
func (ds *Dataset) Update(ctx context.Context, row core.Row) (int64, error) {
	query, args, err := ds.updateSQL(row)
	if err != nil {
		return 0, err
	}
	res, err := ds.exec.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes every matching row and returns the number of rows affected.
func (ds *Dataset) Delete(ctx context.Context) (int64, error) {
	query, args, err := ds.deleteSQL()
	if err != nil {
		return 0, err
	}
	res, err := ds.exec.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Schema describes the base table's columns.
func (ds *Dataset) Schema(ctx context.Context) (*core.ColumnSchema, error) {
	if ds.err != nil {
		return nil, ds.err
	}
	if ds.table == "" {
		return nil, fmt.Errorf("dataset has no table")
	}
	return ds.exec.Columns(ctx, ds.table)
}
