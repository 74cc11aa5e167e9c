package core

import (
	"context"
)

// JoinKind is the SQL keyword sequence introducing a join.
type JoinKind string

const (
	InnerJoin        JoinKind = "INNER JOIN"
	LeftJoin         JoinKind = "LEFT JOIN"
	LeftOuterJoin    JoinKind = "LEFT OUTER JOIN"
	RightJoin        JoinKind = "RIGHT JOIN"
	RightOuterJoin   JoinKind = "RIGHT OUTER JOIN"
	FullJoin         JoinKind = "FULL JOIN"
	FullOuterJoin    JoinKind = "FULL OUTER JOIN"
	NaturalJoin      JoinKind = "NATURAL JOIN"
	NaturalLeftJoin  JoinKind = "NATURAL LEFT JOIN"
	NaturalRightJoin JoinKind = "NATURAL RIGHT JOIN"
	NaturalFullJoin  JoinKind = "NATURAL FULL JOIN"
	CrossJoin        JoinKind = "CROSS JOIN"
)

// Dataset is a lazy, immutable handle on a relational query.
// Chainable methods never execute anything; they return a new Dataset.
// Building errors (bad arguments, unsupported combinations) are carried
// by the returned Dataset and reported by Err and by every terminal method.
type Dataset interface {
	// Select replaces the projection.
	Select(columns ...interface{}) Dataset
	// SelectAll selects every column, optionally of the given tables only.
	SelectAll(tables ...string) Dataset
	// SelectAppend adds columns to the projection (to * when none was set).
	SelectAppend(columns ...interface{}) Dataset
	// SelectGroup selects and groups by the same columns.
	SelectGroup(columns ...interface{}) Dataset
	// Distinct makes the projection SELECT DISTINCT.
	Distinct() Dataset

	// Where ANDs conditions onto the filter.
	Where(conditions ...interface{}) Dataset
	// Exclude ANDs the negation of the conditions onto the filter.
	Exclude(conditions ...interface{}) Dataset
	// Or ORs the conditions with the existing filter.
	Or(conditions ...interface{}) Dataset
	// Invert negates the whole filter.
	Invert() Dataset
	// Unfiltered removes WHERE and HAVING.
	Unfiltered() Dataset

	// Join adds a join of the given kind; condition may be nil for cross and natural joins.
	Join(kind JoinKind, table interface{}, condition interface{}) Dataset

	// Group replaces the GROUP BY list.
	Group(columns ...interface{}) Dataset
	// GroupAndCount groups by the columns and selects them with a count column.
	GroupAndCount(columns ...interface{}) Dataset
	// Ungrouped removes GROUP BY and HAVING.
	Ungrouped() Dataset
	// Having ANDs conditions onto HAVING.
	Having(conditions ...interface{}) Dataset
	// ExcludeHaving ANDs negated conditions onto HAVING.
	ExcludeHaving(conditions ...interface{}) Dataset

	// Order replaces the ORDER BY list.
	Order(terms ...interface{}) Dataset
	// OrderAppend adds terms after the existing order.
	OrderAppend(terms ...interface{}) Dataset
	// OrderPrepend adds terms before the existing order.
	OrderPrepend(terms ...interface{}) Dataset
	// Reverse orders by the given terms descending, or flips the existing order when none are given.
	Reverse(terms ...interface{}) Dataset
	// Unordered removes ORDER BY.
	Unordered() Dataset

	// Limit sets LIMIT.
	Limit(n int) Dataset
	// Offset sets OFFSET.
	Offset(n int) Dataset
	// Unlimited removes LIMIT and OFFSET.
	Unlimited() Dataset

	// Union, Intersect and Except combine with another dataset of the same engine.
	Union(other Dataset, all bool) Dataset
	Intersect(other Dataset, all bool) Dataset
	Except(other Dataset, all bool) Dataset

	// ForUpdate adds a FOR UPDATE locking clause.
	ForUpdate() Dataset
	// LockStyle sets the locking clause ("update", "share" or a raw clause).
	LockStyle(style string) Dataset

	// WithSQL replaces the query with literal SQL.
	WithSQL(query string, args ...interface{}) Dataset
	// Returning names the column whose generated value Insert reports.
	Returning(column string) Dataset

	// Err reports the first building error, if any.
	Err() error
	// SQL renders the SELECT statement and its arguments.
	SQL() (string, []interface{}, error)

	// All runs the query and returns every row.
	All(ctx context.Context) ([]Row, error)
	// First runs the query limited to one row; it returns nil when there is none.
	First(ctx context.Context) (Row, error)
	// Count returns the number of rows the query yields.
	Count(ctx context.Context) (int64, error)
	// Min and Max aggregate a column over the query.
	Min(ctx context.Context, column string) (interface{}, error)
	Max(ctx context.Context, column string) (interface{}, error)
	// Insert inserts a row into the base table and returns the generated key.
	Insert(ctx context.Context, row Row) (interface{}, error)
	// Update sets the row's columns on every matching row of the base table.
	Update(ctx context.Context, row Row) (int64, error)
	// Delete removes every matching row of the base table.
	Delete(ctx context.Context) (int64, error)
	// Schema describes the columns of the base table.
	Schema(ctx context.Context) (*ColumnSchema, error)
}
