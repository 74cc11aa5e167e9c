package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/rzpsarthak13/depository/internal/core"
)

// Executor runs statements built by a Dataset.
type Executor interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Columns(ctx context.Context, table string) (*core.ColumnSchema, error)
	Dialect() *Dialect
}

type join struct {
	kind  core.JoinKind
	table Expression
	on    Expression
}

// Dataset is the SQL implementation of core.Dataset.
type Dataset struct {
	exec      Executor
	table     string
	from      Expression
	raw       *Lit
	selects   []Expression
	distinct  bool
	joins     []join
	where     Expression
	group     []Expression
	having    Expression
	order     []Ordered
	limit     *int
	offset    *int
	lock      string
	returning string
	err       error
}

var _ core.Dataset = (*Dataset)(nil)

// New returns a dataset selecting every row of table.
func New(exec Executor, table string) *Dataset {
	ds := &Dataset{exec: exec, table: table}
	if exec == nil {
		ds.err = fmt.Errorf("dataset for %q has no executor", table)
	}
	return ds
}

// Table returns the base table name.
func (ds *Dataset) Table() string {
	return ds.table
}

func (ds *Dataset) clone() *Dataset {
	out := *ds
	out.selects = slices.Clone(ds.selects)
	out.joins = slices.Clone(ds.joins)
	out.group = slices.Clone(ds.group)
	out.order = slices.Clone(ds.order)
	return &out
}

// open returns a copy ready for modification. A literal dataset is wrapped
// as a subquery so further clauses apply to its result.
func (ds *Dataset) open() *Dataset {
	if ds.raw != nil {
		return &Dataset{
			exec:  ds.exec,
			table: ds.table,
			from:  derived{inner: selectExpr{ds}, alias: "t1"},
			err:   ds.err,
		}
	}
	return ds.clone()
}

func (ds *Dataset) fail(err error) *Dataset {
	out := ds.clone()
	if out.err == nil {
		out.err = err
	}
	return out
}

// selectExpr renders a dataset's SELECT statement inline.
type selectExpr struct {
	ds *Dataset
}

func (s selectExpr) appendSQL(b *builder) error {
	return s.ds.appendSelect(b)
}

func (ds *Dataset) Select(columns ...interface{}) core.Dataset {
	cols, err := toColumns(columns)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.selects = cols
	return out
}

func (ds *Dataset) SelectAll(tables ...string) core.Dataset {
	out := ds.open()
	out.selects = nil
	for _, t := range tables {
		out.selects = append(out.selects, Ident(t+".*"))
	}
	return out
}

func (ds *Dataset) SelectAppend(columns ...interface{}) core.Dataset {
	cols, err := toColumns(columns)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	if len(out.selects) == 0 {
		out.selects = []Expression{Lit{SQL: "*"}}
	}
	out.selects = append(out.selects, cols...)
	return out
}

func (ds *Dataset) SelectGroup(columns ...interface{}) core.Dataset {
	cols, err := toColumns(columns)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.selects = cols
	out.group = make([]Expression, 0, len(cols))
	for _, c := range cols {
		// group by the underlying expression, not its alias
		if a, ok := c.(Aliased); ok {
			c = a.Expr
		}
		out.group = append(out.group, c)
	}
	return out
}

func (ds *Dataset) Distinct() core.Dataset {
	out := ds.open()
	out.distinct = true
	return out
}

func (ds *Dataset) Where(conditions ...interface{}) core.Dataset {
	expr, err := conjunction(conditions)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.where = and(out.where, expr)
	return out
}

func (ds *Dataset) Exclude(conditions ...interface{}) core.Dataset {
	expr, err := conjunction(conditions)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	if expr != nil {
		out.where = and(out.where, negation{expr})
	}
	return out
}

func (ds *Dataset) Or(conditions ...interface{}) core.Dataset {
	expr, err := conjunction(conditions)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.where = or(out.where, expr)
	return out
}

func (ds *Dataset) Invert() core.Dataset {
	out := ds.open()
	if out.where == nil {
		out.where = negation{paren{Lit{SQL: "1 = 1"}}}
	} else {
		out.where = negation{out.where}
	}
	return out
}

func (ds *Dataset) Unfiltered() core.Dataset {
	out := ds.open()
	out.where = nil
	out.having = nil
	return out
}

func (ds *Dataset) Join(kind core.JoinKind, table interface{}, condition interface{}) core.Dataset {
	var t Expression
	var err error
	if other, ok := table.(*Dataset); ok {
		t = derived{inner: selectExpr{other}, alias: "t1"}
	} else if t, err = toColumn(table); err != nil {
		return ds.fail(fmt.Errorf("join table: %w", err))
	}

	natural := strings.HasPrefix(string(kind), "NATURAL") || kind == core.CrossJoin
	var on Expression
	switch {
	case natural && condition != nil:
		return ds.fail(fmt.Errorf("%s takes no join condition", kind))
	case natural:
	case condition == nil:
		return ds.fail(fmt.Errorf("%s needs a join condition", kind))
	default:
		if u, ok := condition.(Using); ok {
			on = u
		} else if on, err = toCondition(condition); err != nil {
			return ds.fail(fmt.Errorf("join condition: %w", err))
		}
	}

	out := ds.open()
	out.joins = append(out.joins, join{kind: kind, table: t, on: on})
	return out
}

func (ds *Dataset) Group(columns ...interface{}) core.Dataset {
	cols, err := toColumns(columns)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.group = cols
	return out
}

func (ds *Dataset) GroupAndCount(columns ...interface{}) core.Dataset {
	cols, err := toColumns(columns)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.group = cols
	out.selects = append(slices.Clone(cols), Lit{SQL: "COUNT(*)"}.As("count"))
	return out
}

func (ds *Dataset) Ungrouped() core.Dataset {
	out := ds.open()
	out.group = nil
	out.having = nil
	return out
}

func (ds *Dataset) Having(conditions ...interface{}) core.Dataset {
	expr, err := conjunction(conditions)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.having = and(out.having, expr)
	return out
}

func (ds *Dataset) ExcludeHaving(conditions ...interface{}) core.Dataset {
	expr, err := conjunction(conditions)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	if expr != nil {
		out.having = and(out.having, negation{expr})
	}
	return out
}

func (ds *Dataset) Order(terms ...interface{}) core.Dataset {
	order, err := toOrders(terms)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.order = order
	return out
}

func (ds *Dataset) OrderAppend(terms ...interface{}) core.Dataset {
	order, err := toOrders(terms)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.order = append(out.order, order...)
	return out
}

func (ds *Dataset) OrderPrepend(terms ...interface{}) core.Dataset {
	order, err := toOrders(terms)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	out.order = append(order, out.order...)
	return out
}

func (ds *Dataset) Reverse(terms ...interface{}) core.Dataset {
	order, err := toOrders(terms)
	if err != nil {
		return ds.fail(err)
	}
	out := ds.open()
	if len(order) == 0 {
		order = out.order
	}
	reversed := make([]Ordered, len(order))
	for i, o := range order {
		reversed[i] = Ordered{Expr: o.Expr, Desc: !o.Desc}
	}
	out.order = reversed
	return out
}

func (ds *Dataset) Unordered() core.Dataset {
	out := ds.open()
	out.order = nil
	return out
}

func (ds *Dataset) Limit(n int) core.Dataset {
	if n < 0 {
		return ds.fail(fmt.Errorf("limit must be non-negative, got %d", n))
	}
	out := ds.open()
	out.limit = &n
	return out
}

func (ds *Dataset) Offset(n int) core.Dataset {
	if n < 0 {
		return ds.fail(fmt.Errorf("offset must be non-negative, got %d", n))
	}
	out := ds.open()
	out.offset = &n
	return out
}

func (ds *Dataset) Unlimited() core.Dataset {
	out := ds.open()
	out.limit = nil
	out.offset = nil
	return out
}

func (ds *Dataset) Union(other core.Dataset, all bool) core.Dataset {
	return ds.compound("UNION", other, all)
}

func (ds *Dataset) Intersect(other core.Dataset, all bool) core.Dataset {
	return ds.compound("INTERSECT", other, all)
}

func (ds *Dataset) Except(other core.Dataset, all bool) core.Dataset {
	return ds.compound("EXCEPT", other, all)
}

func (ds *Dataset) compound(op string, other core.Dataset, all bool) core.Dataset {
	o, ok := other.(*Dataset)
	if !ok {
		return ds.fail(fmt.Errorf("cannot %s with %T", strings.ToLower(op), other))
	}
	if o.err != nil {
		return ds.fail(o.err)
	}
	if all {
		op += " ALL"
	}
	return &Dataset{
		exec:  ds.exec,
		table: ds.table,
		from:  derived{inner: compound{op: op, left: ds, right: o}, alias: "t1"},
		err:   ds.err,
	}
}

type compound struct {
	op          string
	left, right *Dataset
}

func (c compound) appendSQL(b *builder) error {
	if err := member(b, c.left); err != nil {
		return err
	}
	b.write(" " + c.op + " ")
	return member(b, c.right)
}

// member renders one side of a compound. Sides carrying ORDER BY or LIMIT
// are wrapped so the clauses bind to that side alone.
func member(b *builder, ds *Dataset) error {
	if len(ds.order) == 0 && ds.limit == nil && ds.offset == nil {
		return ds.appendSelect(b)
	}
	b.write("SELECT * FROM ")
	return derived{inner: selectExpr{ds}, alias: "t1"}.appendSQL(b)
}

func (ds *Dataset) ForUpdate() core.Dataset {
	return ds.LockStyle("update")
}

func (ds *Dataset) LockStyle(style string) core.Dataset {
	out := ds.open()
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "":
		out.lock = ""
	case "update":
		out.lock = "FOR UPDATE"
	case "share":
		out.lock = "FOR SHARE"
	default:
		out.lock = style
	}
	return out
}

func (ds *Dataset) WithSQL(query string, args ...interface{}) core.Dataset {
	if strings.TrimSpace(query) == "" {
		return ds.fail(fmt.Errorf("literal query cannot be empty"))
	}
	return &Dataset{
		exec:  ds.exec,
		table: ds.table,
		raw:   &Lit{SQL: query, Args: args},
		err:   ds.err,
	}
}

func (ds *Dataset) Returning(column string) core.Dataset {
	out := ds.clone()
	out.returning = column
	return out
}

func (ds *Dataset) Err() error {
	return ds.err
}
