package depository

import (
	"fmt"
	"sort"

	"github.com/rzpsarthak13/depository/internal/core"
)

// operator applies one chainable operation to a dataset.
type operator func(ds core.Dataset, args []interface{}) (core.Dataset, error)

// operators is the closed set of chainable operations a Result forwards.
var operators = map[string]operator{
	"select":        variadic(core.Dataset.Select),
	"select_all":    selectAll,
	"select_append": variadic(core.Dataset.SelectAppend),
	"select_more":   variadic(core.Dataset.SelectAppend),
	"select_group":  variadic(core.Dataset.SelectGroup),
	"distinct":      nullary(core.Dataset.Distinct),

	"where":         variadic(core.Dataset.Where),
	"filter":        variadic(core.Dataset.Where),
	"and":           variadic(core.Dataset.Where),
	"exclude":       variadic(core.Dataset.Exclude),
	"exclude_where": variadic(core.Dataset.Exclude),
	"or":            variadic(core.Dataset.Or),
	"invert":        nullary(core.Dataset.Invert),
	"unfiltered":    nullary(core.Dataset.Unfiltered),

	"join":               joinOf(core.InnerJoin),
	"join_table":         joinTable,
	"inner_join":         joinOf(core.InnerJoin),
	"left_join":          joinOf(core.LeftJoin),
	"left_outer_join":    joinOf(core.LeftOuterJoin),
	"right_join":         joinOf(core.RightJoin),
	"right_outer_join":   joinOf(core.RightOuterJoin),
	"full_join":          joinOf(core.FullJoin),
	"full_outer_join":    joinOf(core.FullOuterJoin),
	"natural_join":       joinOf(core.NaturalJoin),
	"natural_left_join":  joinOf(core.NaturalLeftJoin),
	"natural_right_join": joinOf(core.NaturalRightJoin),
	"natural_full_join":  joinOf(core.NaturalFullJoin),
	"cross_join":         joinOf(core.CrossJoin),

	"group":           variadic(core.Dataset.Group),
	"group_by":        variadic(core.Dataset.Group),
	"group_and_count": variadic(core.Dataset.GroupAndCount),
	"ungrouped":       nullary(core.Dataset.Ungrouped),
	"having":          variadic(core.Dataset.Having),
	"exclude_having":  variadic(core.Dataset.ExcludeHaving),

	"order":         variadic(core.Dataset.Order),
	"order_by":      variadic(core.Dataset.Order),
	"order_append":  variadic(core.Dataset.OrderAppend),
	"order_more":    variadic(core.Dataset.OrderAppend),
	"order_prepend": variadic(core.Dataset.OrderPrepend),
	"reverse":       variadic(core.Dataset.Reverse),
	"reverse_order": variadic(core.Dataset.Reverse),
	"unordered":     nullary(core.Dataset.Unordered),

	"limit":     limit,
	"offset":    offset,
	"unlimited": nullary(core.Dataset.Unlimited),

	"union":     compound(core.Dataset.Union),
	"intersect": compound(core.Dataset.Intersect),
	"except":    compound(core.Dataset.Except),

	"for_update": nullary(core.Dataset.ForUpdate),
	"lock_style": lockStyle,
	"with_sql":   withSQL,
}

// Operators lists the names Result.Apply accepts, sorted.
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func variadic(fn func(core.Dataset, ...interface{}) core.Dataset) operator {
	return func(ds core.Dataset, args []interface{}) (core.Dataset, error) {
		return fn(ds, args...), nil
	}
}

func nullary(fn func(core.Dataset) core.Dataset) operator {
	return func(ds core.Dataset, args []interface{}) (core.Dataset, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("takes no arguments, got %d", len(args))
		}
		return fn(ds), nil
	}
}

func selectAll(ds core.Dataset, args []interface{}) (core.Dataset, error) {
	tables := make([]string, len(args))
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("table names must be strings, got %T", a)
		}
		tables[i] = s
	}
	return ds.SelectAll(tables...), nil
}

// joinOf takes (table) or (table, condition).
func joinOf(kind core.JoinKind) operator {
	return func(ds core.Dataset, args []interface{}) (core.Dataset, error) {
		switch len(args) {
		case 1:
			return ds.Join(kind, args[0], nil), nil
		case 2:
			return ds.Join(kind, args[0], args[1]), nil
		default:
			return nil, fmt.Errorf("expects a table and an optional condition, got %d arguments", len(args))
		}
	}
}

// joinTable takes (kind, table) or (kind, table, condition); kind is a
// join operator name such as "left" or "left_outer".
func joinTable(ds core.Dataset, args []interface{}) (core.Dataset, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("expects a kind, a table and an optional condition, got %d arguments", len(args))
	}
	var kind core.JoinKind
	switch k := args[0].(type) {
	case core.JoinKind:
		kind = k
	case string:
		var ok bool
		if kind, ok = joinKinds[k]; !ok {
			return nil, fmt.Errorf("unknown join kind %q", k)
		}
	default:
		return nil, fmt.Errorf("join kind must be a string, got %T", args[0])
	}
	return joinOf(kind)(ds, args[1:])
}

var joinKinds = map[string]core.JoinKind{
	"inner":         core.InnerJoin,
	"left":          core.LeftJoin,
	"left_outer":    core.LeftOuterJoin,
	"right":         core.RightJoin,
	"right_outer":   core.RightOuterJoin,
	"full":          core.FullJoin,
	"full_outer":    core.FullOuterJoin,
	"natural":       core.NaturalJoin,
	"natural_left":  core.NaturalLeftJoin,
	"natural_right": core.NaturalRightJoin,
	"natural_full":  core.NaturalFullJoin,
	"cross":         core.CrossJoin,
}

func intArg(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expects an integer, got %T", v)
	}
}

// limit takes (n) or (n, offset).
func limit(ds core.Dataset, args []interface{}) (core.Dataset, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("expects a limit and an optional offset, got %d arguments", len(args))
	}
	n, err := intArg(args[0])
	if err != nil {
		return nil, err
	}
	ds = ds.Limit(n)
	if len(args) == 2 {
		return offset(ds, args[1:])
	}
	return ds, nil
}

func offset(ds core.Dataset, args []interface{}) (core.Dataset, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects one offset, got %d arguments", len(args))
	}
	n, err := intArg(args[0])
	if err != nil {
		return nil, err
	}
	return ds.Offset(n), nil
}

// compound takes (other) or (other, all).
func compound(fn func(core.Dataset, core.Dataset, bool) core.Dataset) operator {
	return func(ds core.Dataset, args []interface{}) (core.Dataset, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("expects a dataset and an optional all flag, got %d arguments", len(args))
		}
		var other core.Dataset
		switch o := args[0].(type) {
		case *Result:
			if o.err != nil {
				return nil, o.err
			}
			other = o.ds
		case core.Dataset:
			other = o
		default:
			return nil, fmt.Errorf("expects a *Result or a dataset, got %T", args[0])
		}
		all := false
		if len(args) == 2 {
			b, ok := args[1].(bool)
			if !ok {
				return nil, fmt.Errorf("all flag must be a bool, got %T", args[1])
			}
			all = b
		}
		return fn(ds, other, all), nil
	}
}

func lockStyle(ds core.Dataset, args []interface{}) (core.Dataset, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects one lock style, got %d arguments", len(args))
	}
	style, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("lock style must be a string, got %T", args[0])
	}
	return ds.LockStyle(style), nil
}

func withSQL(ds core.Dataset, args []interface{}) (core.Dataset, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("expects a query")
	}
	query, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("query must be a string, got %T", args[0])
	}
	return ds.WithSQL(query, args[1:]...), nil
}
