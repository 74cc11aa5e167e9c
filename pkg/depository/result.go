package depository

import (
	"context"
	"fmt"
	"iter"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/dataset"
)

// Result is an immutable, lazily evaluated query over a repository's
// dataset. Chainable methods return a new Result; terminal methods execute.
// A building error is carried along the chain and returned by the next
// terminal call.
type Result struct {
	ds   core.Dataset
	repo *Repository
	err  error
}

func newResult(repo *Repository, ds core.Dataset, err error) *Result {
	return &Result{ds: ds, repo: repo, err: err}
}

// Err reports the first error met while building the chain.
func (r *Result) Err() error {
	if r.err != nil {
		return r.err
	}
	if r.ds == nil {
		return ErrNoDatabase
	}
	return r.ds.Err()
}

// Dataset returns the underlying dataset.
func (r *Result) Dataset() core.Dataset {
	return r.ds
}

// SQL renders the query without running it.
func (r *Result) SQL() (string, []interface{}, error) {
	if err := r.Err(); err != nil {
		return "", nil, err
	}
	return r.ds.SQL()
}

// Apply runs the named chainable operator. Names outside Operators() yield
// a Result carrying ErrUnsupportedOperator.
func (r *Result) Apply(op string, args ...interface{}) *Result {
	if r.err != nil {
		return r
	}
	fn, ok := operators[op]
	if !ok {
		return newResult(r.repo, r.ds, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op))
	}
	if r.ds == nil {
		return newResult(r.repo, nil, ErrNoDatabase)
	}
	ds, err := fn(r.ds, args)
	if err != nil {
		return newResult(r.repo, r.ds, fmt.Errorf("%s: %w", op, err))
	}
	return newResult(r.repo, ds, nil)
}

func (r *Result) Select(columns ...interface{}) *Result { return r.Apply("select", columns...) }

func (r *Result) SelectAppend(columns ...interface{}) *Result {
	return r.Apply("select_append", columns...)
}

func (r *Result) SelectGroup(columns ...interface{}) *Result {
	return r.Apply("select_group", columns...)
}

func (r *Result) Distinct() *Result { return r.Apply("distinct") }

func (r *Result) Where(conditions ...interface{}) *Result { return r.Apply("where", conditions...) }

func (r *Result) Exclude(conditions ...interface{}) *Result {
	return r.Apply("exclude", conditions...)
}

func (r *Result) Or(conditions ...interface{}) *Result { return r.Apply("or", conditions...) }

func (r *Result) Invert() *Result { return r.Apply("invert") }

func (r *Result) Unfiltered() *Result { return r.Apply("unfiltered") }

// Join is an inner join; condition may be an On, Using, Eq, or literal.
func (r *Result) Join(table, condition interface{}) *Result {
	return r.Apply("join", table, condition)
}

func (r *Result) LeftJoin(table, condition interface{}) *Result {
	return r.Apply("left_join", table, condition)
}

func (r *Result) RightJoin(table, condition interface{}) *Result {
	return r.Apply("right_join", table, condition)
}

func (r *Result) FullJoin(table, condition interface{}) *Result {
	return r.Apply("full_join", table, condition)
}

func (r *Result) NaturalJoin(table interface{}) *Result { return r.Apply("natural_join", table) }

func (r *Result) CrossJoin(table interface{}) *Result { return r.Apply("cross_join", table) }

func (r *Result) Group(columns ...interface{}) *Result { return r.Apply("group", columns...) }

func (r *Result) GroupAndCount(columns ...interface{}) *Result {
	return r.Apply("group_and_count", columns...)
}

func (r *Result) Having(conditions ...interface{}) *Result {
	return r.Apply("having", conditions...)
}

func (r *Result) Order(terms ...interface{}) *Result { return r.Apply("order", terms...) }

func (r *Result) OrderAppend(terms ...interface{}) *Result {
	return r.Apply("order_append", terms...)
}

func (r *Result) Reverse(terms ...interface{}) *Result { return r.Apply("reverse", terms...) }

func (r *Result) Unordered() *Result { return r.Apply("unordered") }

func (r *Result) Limit(n int) *Result { return r.Apply("limit", n) }

func (r *Result) Offset(n int) *Result { return r.Apply("offset", n) }

func (r *Result) Unlimited() *Result { return r.Apply("unlimited") }

func (r *Result) Union(other *Result) *Result { return r.Apply("union", other) }

func (r *Result) Intersect(other *Result) *Result { return r.Apply("intersect", other) }

func (r *Result) Except(other *Result) *Result { return r.Apply("except", other) }

func (r *Result) ForUpdate() *Result { return r.Apply("for_update") }

func (r *Result) LockStyle(style string) *Result { return r.Apply("lock_style", style) }

func (r *Result) WithSQL(query string, args ...interface{}) *Result {
	return r.Apply("with_sql", append([]interface{}{query}, args...)...)
}

// Each runs the query and yields one record per row, converting each row
// only when it is reached. Every iteration runs the query again.
func (r *Result) Each(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rows, err := r.RawRows(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			rec, err := r.repo.ConvertRow(ctx, row)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Records runs the query and converts every row.
func (r *Result) Records(ctx context.Context) ([]Record, error) {
	var out []Record
	for rec, err := range r.Each(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// First returns the first record, or nil when the query yields no row.
func (r *Result) First(ctx context.Context) (Record, error) {
	row, err := r.RawFirst(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	return r.repo.ConvertRow(ctx, row)
}

// RawFirst returns the first row unconverted, or nil when there is none.
func (r *Result) RawFirst(ctx context.Context) (Row, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.ds.First(ctx)
}

// RawRows runs the query and returns rows without converting them.
func (r *Result) RawRows(ctx context.Context) ([]Row, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.ds.All(ctx)
}

func (r *Result) Count(ctx context.Context) (int64, error) {
	if err := r.Err(); err != nil {
		return 0, err
	}
	return r.ds.Count(ctx)
}

func (r *Result) Min(ctx context.Context, column string) (interface{}, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.ds.Min(ctx, column)
}

func (r *Result) Max(ctx context.Context, column string) (interface{}, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.ds.Max(ctx, column)
}

// Insert writes row as is and returns the generated key.
func (r *Result) Insert(ctx context.Context, row Row) (interface{}, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.ds.Insert(ctx, row)
}

// Update sets row's columns on every matching row and returns how many changed.
// When the repository caches records, the matched rows are evicted.
func (r *Result) Update(ctx context.Context, row Row) (int64, error) {
	if err := r.Err(); err != nil {
		return 0, err
	}
	keys, err := r.cachedKeys(ctx)
	if err != nil {
		return 0, err
	}
	n, err := r.ds.Update(ctx, row)
	r.repo.evict(ctx, keys)
	return n, err
}

// Delete removes every matching row and returns how many were removed.
// When the repository caches records, the matched rows are evicted.
func (r *Result) Delete(ctx context.Context) (int64, error) {
	if err := r.Err(); err != nil {
		return 0, err
	}
	keys, err := r.cachedKeys(ctx)
	if err != nil {
		return 0, err
	}
	n, err := r.ds.Delete(ctx)
	r.repo.evict(ctx, keys)
	return n, err
}

// cachedKeys lists the primary keys a write through r is about to touch. It
// must run before the write: afterwards a delete has removed the rows and an
// update may have moved them out of the filter.
func (r *Result) cachedKeys(ctx context.Context) ([]interface{}, error) {
	if r.repo == nil || r.repo.cache == nil {
		return nil, nil
	}
	pk := r.repo.config.PrimaryKey()
	rows, err := r.ds.Select(dataset.I(pk)).Unordered().Unlimited().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect cached keys: %w", err)
	}
	keys := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		if k := row[pk]; k != nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Equal materializes both sides and compares them record by record. other
// is a *Result or a []Record.
func (r *Result) Equal(ctx context.Context, other interface{}) (bool, error) {
	left, err := r.Records(ctx)
	if err != nil {
		return false, err
	}

	var right []Record
	switch o := other.(type) {
	case *Result:
		if right, err = o.Records(ctx); err != nil {
			return false, err
		}
	case []Record:
		right = o
	default:
		return false, fmt.Errorf("cannot compare a result with %T", other)
	}

	if len(left) != len(right) {
		return false, nil
	}
	for i := range left {
		if !Equal(left[i], right[i]) {
			return false, nil
		}
	}
	return true, nil
}
