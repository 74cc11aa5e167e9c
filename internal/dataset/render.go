package dataset

import (
	"fmt"
	"strconv"

	"github.com/rzpsarthak13/depository/internal/core"
)

// SQL renders the SELECT statement.
func (ds *Dataset) SQL() (string, []interface{}, error) {
	if ds.err != nil {
		return "", nil, ds.err
	}
	b := newBuilder(ds.exec.Dialect())
	if err := ds.appendSelect(b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

func (ds *Dataset) appendSelect(b *builder) error {
	if ds.err != nil {
		return ds.err
	}
	if ds.raw != nil {
		return ds.raw.appendSQL(b)
	}

	b.write("SELECT ")
	if ds.distinct {
		b.write("DISTINCT ")
	}
	if len(ds.selects) == 0 {
		b.write("*")
	} else if err := b.list(ds.selects); err != nil {
		return err
	}

	b.write(" FROM ")
	if err := ds.appendSource(b); err != nil {
		return err
	}

	for _, j := range ds.joins {
		b.write(" " + string(j.kind) + " ")
		if err := j.table.appendSQL(b); err != nil {
			return err
		}
		if j.on == nil {
			continue
		}
		if _, ok := j.on.(Using); ok {
			b.write(" ")
		} else {
			b.write(" ON ")
		}
		if err := j.on.appendSQL(b); err != nil {
			return err
		}
	}

	if err := ds.appendWhere(b); err != nil {
		return err
	}

	if len(ds.group) > 0 {
		b.write(" GROUP BY ")
		if err := b.list(ds.group); err != nil {
			return err
		}
	}
	if ds.having != nil {
		b.write(" HAVING ")
		if err := ds.having.appendSQL(b); err != nil {
			return err
		}
	}

	if len(ds.order) > 0 {
		b.write(" ORDER BY ")
		for i, o := range ds.order {
			if i > 0 {
				b.write(", ")
			}
			if err := o.appendSQL(b); err != nil {
				return err
			}
		}
	}

	switch {
	case ds.limit != nil:
		b.write(" LIMIT " + strconv.Itoa(*ds.limit))
	case ds.offset != nil && b.d.NoLimit != "":
		b.write(" LIMIT " + b.d.NoLimit)
	}
	if ds.offset != nil {
		b.write(" OFFSET " + strconv.Itoa(*ds.offset))
	}

	if ds.lock != "" && b.d.Locking {
		b.write(" " + ds.lock)
	}
	return nil
}

func (ds *Dataset) appendSource(b *builder) error {
	if ds.from != nil {
		return ds.from.appendSQL(b)
	}
	if ds.table == "" {
		return fmt.Errorf("dataset has no table")
	}
	b.quote(ds.table)
	return nil
}

func (ds *Dataset) appendWhere(b *builder) error {
	if ds.where == nil {
		return nil
	}
	b.write(" WHERE ")
	return ds.where.appendSQL(b)
}

// writable reports whether INSERT, UPDATE and DELETE can target the base table.
func (ds *Dataset) writable(op string) error {
	if ds.err != nil {
		return ds.err
	}
	if ds.table == "" {
		return fmt.Errorf("%s: dataset has no table", op)
	}
	if ds.raw != nil || ds.from != nil || len(ds.joins) > 0 || len(ds.group) > 0 {
		return fmt.Errorf("%s is not supported on joined, grouped, combined or literal datasets", op)
	}
	return nil
}

func (ds *Dataset) insertSQL(row core.Row) (string, []interface{}, error) {
	if err := ds.writable("insert"); err != nil {
		return "", nil, err
	}
	b := newBuilder(ds.exec.Dialect())
	b.write("INSERT INTO ")
	b.quote(ds.table)

	cols := row.Keys()
	if len(cols) == 0 {
		b.write(b.d.EmptyInsert)
	} else {
		b.write(" (")
		for i, c := range cols {
			if i > 0 {
				b.write(", ")
			}
			b.quote(c)
		}
		b.write(") VALUES (")
		for i, c := range cols {
			if i > 0 {
				b.write(", ")
			}
			if err := b.bind(row[c]); err != nil {
				return "", nil, err
			}
		}
		b.write(")")
	}

	if ds.returning != "" && b.d.Returning {
		b.write(" RETURNING ")
		b.quote(ds.returning)
	}
	return b.String(), b.args, nil
}

func (ds *Dataset) updateSQL(row core.Row) (string, []interface{}, error) {
	if err := ds.writable("update"); err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return "", nil, fmt.Errorf("update: no columns to set")
	}
	b := newBuilder(ds.exec.Dialect())
	b.write("UPDATE ")
	b.quote(ds.table)
	b.write(" SET ")
	for i, c := range row.Keys() {
		if i > 0 {
			b.write(", ")
		}
		b.quote(c)
		b.write(" = ")
		if err := b.bind(row[c]); err != nil {
			return "", nil, err
		}
	}
	if err := ds.appendWhere(b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

func (ds *Dataset) deleteSQL() (string, []interface{}, error) {
	if err := ds.writable("delete"); err != nil {
		return "", nil, err
	}
	b := newBuilder(ds.exec.Dialect())
	b.write("DELETE FROM ")
	b.quote(ds.table)
	if err := ds.appendWhere(b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}
