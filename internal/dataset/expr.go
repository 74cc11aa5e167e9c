package dataset

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/rzpsarthak13/depository/internal/core"
)

// Expression is a fragment of SQL that can be rendered into a statement.
type Expression interface {
	appendSQL(b *builder) error
}

// builder accumulates SQL text and bind arguments for one statement.
type builder struct {
	d    *Dialect
	sb   strings.Builder
	args []interface{}
}

func newBuilder(d *Dialect) *builder {
	return &builder{d: d}
}

func (b *builder) write(s string) {
	b.sb.WriteString(s)
}

func (b *builder) quote(name string) {
	b.sb.WriteString(b.d.QuoteIdentifier(name))
}

// bind writes a placeholder for v, or renders v itself when it is an Expression.
func (b *builder) bind(v interface{}) error {
	if e, ok := v.(Expression); ok {
		return e.appendSQL(b)
	}
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.Placeholder(len(b.args)))
	return nil
}

func (b *builder) list(exprs []Expression) error {
	for i, e := range exprs {
		if i > 0 {
			b.write(", ")
		}
		if err := e.appendSQL(b); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) String() string {
	return b.sb.String()
}

// Ident is a column or table name, optionally qualified ("people.id").
type Ident string

// I returns an identifier expression.
func I(name string) Ident {
	return Ident(name)
}

// As aliases the identifier.
func (i Ident) As(alias string) Aliased {
	return Aliased{Expr: i, Alias: alias}
}

func (i Ident) appendSQL(b *builder) error {
	if i == "" {
		return fmt.Errorf("empty identifier")
	}
	b.quote(string(i))
	return nil
}

// Lit is literal SQL. Each ? outside a quoted string is bound to the next
// argument; Expression arguments are rendered in place.
type Lit struct {
	SQL  string
	Args []interface{}
}

// L returns a literal SQL expression.
func L(sql string, args ...interface{}) Lit {
	return Lit{SQL: sql, Args: args}
}

// As aliases the literal.
func (l Lit) As(alias string) Aliased {
	return Aliased{Expr: l, Alias: alias}
}

func (l Lit) appendSQL(b *builder) error {
	next := 0
	quoted := false
	start := 0
	for i := 0; i < len(l.SQL); i++ {
		switch l.SQL[i] {
		case '\'':
			quoted = !quoted
		case '?':
			if quoted {
				continue
			}
			if next >= len(l.Args) {
				return fmt.Errorf("not enough arguments for literal %q", l.SQL)
			}
			b.write(l.SQL[start:i])
			if err := b.bind(l.Args[next]); err != nil {
				return err
			}
			next++
			start = i + 1
		}
	}
	b.write(l.SQL[start:])
	if next != len(l.Args) {
		return fmt.Errorf("too many arguments for literal %q", l.SQL)
	}
	return nil
}

// Eq is a conjunction of column comparisons. A nil value renders IS NULL,
// a slice renders IN, and an Expression value is compared as-is.
type Eq map[string]interface{}

func (e Eq) appendSQL(b *builder) error {
	if len(e) == 0 {
		b.write("(1 = 1)")
		return nil
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 1 {
		b.write("(")
	}
	for i, k := range keys {
		if i > 0 {
			b.write(" AND ")
		}
		if err := comparison(b, k, e[k]); err != nil {
			return err
		}
	}
	if len(keys) > 1 {
		b.write(")")
	}
	return nil
}

func comparison(b *builder, column string, value interface{}) error {
	b.write("(")
	b.quote(column)
	if value == nil {
		b.write(" IS NULL)")
		return nil
	}
	if _, ok := value.(Expression); !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			if rv.Len() == 0 {
				b.write(" IN (NULL))")
				return nil
			}
			b.write(" IN (")
			for i := 0; i < rv.Len(); i++ {
				if i > 0 {
					b.write(", ")
				}
				if err := b.bind(rv.Index(i).Interface()); err != nil {
					return err
				}
			}
			b.write("))")
			return nil
		}
	}
	b.write(" = ")
	if err := b.bind(value); err != nil {
		return err
	}
	b.write(")")
	return nil
}

// On is a join condition. Keys are columns of the joined table, values are
// usually Idents naming columns of the tables already in the query.
type On map[string]interface{}

func (o On) appendSQL(b *builder) error {
	return Eq(o).appendSQL(b)
}

// Using is a USING (...) join condition.
type Using []string

func (u Using) appendSQL(b *builder) error {
	if len(u) == 0 {
		return fmt.Errorf("USING needs at least one column")
	}
	b.write("USING (")
	for i, c := range u {
		if i > 0 {
			b.write(", ")
		}
		b.quote(c)
	}
	b.write(")")
	return nil
}

// Aliased renders "expr AS alias".
type Aliased struct {
	Expr  Expression
	Alias string
}

// As aliases any expression.
func As(expr interface{}, alias string) Aliased {
	e, err := toColumn(expr)
	if err != nil {
		e = invalid{err}
	}
	return Aliased{Expr: e, Alias: alias}
}

func (a Aliased) appendSQL(b *builder) error {
	if err := a.Expr.appendSQL(b); err != nil {
		return err
	}
	b.write(" AS ")
	b.quote(a.Alias)
	return nil
}

// Ordered is an ORDER BY term.
type Ordered struct {
	Expr Expression
	Desc bool
}

// Asc orders by the column ascending.
func Asc(column interface{}) Ordered {
	e, err := toColumn(column)
	if err != nil {
		e = invalid{err}
	}
	return Ordered{Expr: e}
}

// Desc orders by the column descending.
func Desc(column interface{}) Ordered {
	o := Asc(column)
	o.Desc = true
	return o
}

func (o Ordered) appendSQL(b *builder) error {
	if err := o.Expr.appendSQL(b); err != nil {
		return err
	}
	if o.Desc {
		b.write(" DESC")
	} else {
		b.write(" ASC")
	}
	return nil
}

type junction struct {
	op    string
	parts []Expression
}

func (j junction) appendSQL(b *builder) error {
	if len(j.parts) == 1 {
		return j.parts[0].appendSQL(b)
	}
	b.write("(")
	for i, p := range j.parts {
		if i > 0 {
			b.write(" " + j.op + " ")
		}
		if err := p.appendSQL(b); err != nil {
			return err
		}
	}
	b.write(")")
	return nil
}

type negation struct {
	expr Expression
}

func (n negation) appendSQL(b *builder) error {
	b.write("NOT ")
	if _, ok := n.expr.(paren); ok {
		return n.expr.appendSQL(b)
	}
	b.write("(")
	if err := n.expr.appendSQL(b); err != nil {
		return err
	}
	b.write(")")
	return nil
}

type paren struct {
	expr Expression
}

func (p paren) appendSQL(b *builder) error {
	b.write("(")
	if err := p.expr.appendSQL(b); err != nil {
		return err
	}
	b.write(")")
	return nil
}

type function struct {
	name string
	arg  Expression
}

func (f function) appendSQL(b *builder) error {
	b.write(f.name + "(")
	if err := f.arg.appendSQL(b); err != nil {
		return err
	}
	b.write(")")
	return nil
}

// derived is a parenthesized subquery used as a table.
type derived struct {
	inner Expression
	alias string
}

func (d derived) appendSQL(b *builder) error {
	b.write("(")
	if err := d.inner.appendSQL(b); err != nil {
		return err
	}
	b.write(") AS ")
	b.quote(d.alias)
	return nil
}

// invalid defers a construction error to render time.
type invalid struct {
	err error
}

func (i invalid) appendSQL(*builder) error {
	return i.err
}

func and(left, right Expression) Expression {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return junction{op: "AND", parts: []Expression{left, right}}
}

func or(left, right Expression) Expression {
	if left == nil || right == nil {
		return left
	}
	return junction{op: "OR", parts: []Expression{left, right}}
}

func toCondition(v interface{}) (Expression, error) {
	switch c := v.(type) {
	case nil:
		return nil, fmt.Errorf("condition cannot be nil")
	case Eq:
		return c, nil
	case On:
		return Eq(c), nil
	case map[string]interface{}:
		return Eq(c), nil
	case core.Row:
		return Eq(c), nil
	case Lit:
		return paren{c}, nil
	case string:
		return paren{Lit{SQL: c}}, nil
	case bool:
		if c {
			return paren{Lit{SQL: "1 = 1"}}, nil
		}
		return paren{Lit{SQL: "1 = 0"}}, nil
	case Expression:
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported condition type %T", v)
	}
}

// conjunction ANDs every condition; it returns nil for an empty list.
func conjunction(conds []interface{}) (Expression, error) {
	var out Expression
	for _, c := range conds {
		e, err := toCondition(c)
		if err != nil {
			return nil, err
		}
		out = and(out, e)
	}
	return out, nil
}

func toColumn(v interface{}) (Expression, error) {
	switch c := v.(type) {
	case string:
		return Ident(c), nil
	case Expression:
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", v)
	}
}

func toColumns(vs []interface{}) ([]Expression, error) {
	out := make([]Expression, 0, len(vs))
	for _, v := range vs {
		e, err := toColumn(v)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toOrders(vs []interface{}) ([]Ordered, error) {
	out := make([]Ordered, 0, len(vs))
	for _, v := range vs {
		if o, ok := v.(Ordered); ok {
			out = append(out, o)
			continue
		}
		e, err := toColumn(v)
		if err != nil {
			return nil, err
		}
		out = append(out, Ordered{Expr: e})
	}
	return out, nil
}
