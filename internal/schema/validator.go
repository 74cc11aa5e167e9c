package schema

import (
	"fmt"

	"github.com/rzpsarthak13/depository/internal/core"
)

// RowValidator checks that a row really is a row of the schema's table before
// it is cached under that table's key space.
type RowValidator struct {
	schema *core.ColumnSchema
	mapper *TypeMapper
}

// NewRowValidator creates a new validator for the given schema.
func NewRowValidator(schema *core.ColumnSchema) *RowValidator {
	return &RowValidator{
		schema: schema,
		mapper: NewTypeMapper(),
	}
}

// ValidateRow returns an error if the row carries columns the table does not
// have or lacks a primary key value.
func (v *RowValidator) ValidateRow(row core.Row, primaryKey string) error {
	if row == nil {
		return fmt.Errorf("row cannot be nil")
	}
	if v.schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}

	if row[primaryKey] == nil {
		return fmt.Errorf("missing primary key: %s", primaryKey)
	}

	known := make(map[string]struct{}, len(v.schema.Columns))
	for _, c := range v.schema.Columns {
		known[c.Name] = struct{}{}
	}
	for name := range row {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("column '%s' is not part of table %s", name, v.schema.TableName)
		}
	}
	return nil
}

// ValidateKey checks that a primary key value is usable for the key column.
func (v *RowValidator) ValidateKey(key interface{}, primaryKey string) error {
	if key == nil {
		return fmt.Errorf("primary key cannot be nil")
	}
	if v.schema.Kind(primaryKey) == core.TypeInteger {
		if _, err := v.mapper.ToInt64(key); err != nil {
			return fmt.Errorf("primary key %s: %w", primaryKey, err)
		}
	}
	return nil
}
