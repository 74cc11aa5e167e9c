package core

// ColumnType is the coarse kind of a column, as far as value coercion cares.
type ColumnType int

const (
	// TypeOther covers every declared type that needs no coercion.
	TypeOther ColumnType = iota

	// TypeInteger covers INT, BIGINT, SMALLINT and friends.
	TypeInteger

	// TypeBoolean covers BOOLEAN, BOOL and MySQL's TINYINT(1).
	TypeBoolean

	// TypeDatetime covers DATETIME, TIMESTAMP and TIME.
	TypeDatetime

	// TypeDate covers DATE.
	TypeDate
)

// String returns the lower-case name of the kind.
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeDatetime:
		return "datetime"
	case TypeDate:
		return "date"
	default:
		return "other"
	}
}

// ColumnSchema represents the structure of a database table.
type ColumnSchema struct {
	// TableName is the name of the table.
	TableName string

	// PrimaryKey is the name of the primary key column, if the engine reports one.
	PrimaryKey string

	// Columns contains all column definitions for the table, in declaration order.
	Columns []Column
}

// Column represents a single column in a database table.
type Column struct {
	// Name is the column name.
	Name string

	// Type is the declared database type (e.g., "INT", "VARCHAR(255)", "TIMESTAMP").
	Type string

	// Kind is the coercion kind derived from Type.
	Kind ColumnType

	// Nullable indicates whether the column can contain NULL values.
	Nullable bool

	// PrimaryKey is set for the primary key column.
	PrimaryKey bool
}

// Kind returns the kind of the named column, or TypeOther when the column is unknown.
func (s *ColumnSchema) Kind(name string) ColumnType {
	if s == nil {
		return TypeOther
	}
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Kind
		}
	}
	return TypeOther
}

// OfType returns the names of all columns of the given kind.
func (s *ColumnSchema) OfType(kind ColumnType) []string {
	if s == nil {
		return nil
	}
	var names []string
	for _, c := range s.Columns {
		if c.Kind == kind {
			names = append(names, c.Name)
		}
	}
	return names
}

// Names returns the column names in declaration order.
func (s *ColumnSchema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
