package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rzpsarthak13/depository/internal/core"
)

// Translator converts raw rows to and from the byte form stored in a KV store.
// Rows are JSON encoded; on the way back, integer, boolean and time columns are
// restored to the Go types the database driver produces.
type Translator struct {
	mapper *TypeMapper
}

// NewTranslator creates a new row translator.
func NewTranslator() *Translator {
	return &Translator{
		mapper: NewTypeMapper(),
	}
}

// ToKV serializes a row for the KV store.
func (t *Translator) ToKV(row core.Row, schema *core.ColumnSchema) ([]byte, error) {
	if row == nil {
		return nil, fmt.Errorf("row cannot be nil")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}

	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row: %w", err)
	}
	return data, nil
}

// FromKV deserializes a row previously written by ToKV.
func (t *Translator) FromKV(value []byte, schema *core.ColumnSchema) (core.Row, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}

	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()

	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row: %w", err)
	}

	row := make(core.Row, len(raw))
	for name, v := range raw {
		restored, err := t.mapper.Restore(v, schema.Kind(name))
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", name, err)
		}
		row[name] = restored
	}
	return row, nil
}
