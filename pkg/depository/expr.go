package depository

import (
	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/dataset"
)

// Query expressions accepted by Result operators.
type (
	Eq    = dataset.Eq
	On    = dataset.On
	Using = dataset.Using
	Ident = dataset.Ident
	Lit   = dataset.Lit
)

// I names a column or table, optionally qualified ("people.id").
func I(name string) Ident { return dataset.I(name) }

// L is literal SQL with ? placeholders.
func L(sql string, args ...interface{}) Lit { return dataset.L(sql, args...) }

func As(expr interface{}, alias string) dataset.Aliased { return dataset.As(expr, alias) }

func Asc(column interface{}) dataset.Ordered { return dataset.Asc(column) }

func Desc(column interface{}) dataset.Ordered { return dataset.Desc(column) }

// JoinKind selects a join for the "join_table" operator.
type JoinKind = core.JoinKind

const (
	InnerJoin = core.InnerJoin
	LeftJoin  = core.LeftJoin
	RightJoin = core.RightJoin
	FullJoin  = core.FullJoin
	CrossJoin = core.CrossJoin
)
