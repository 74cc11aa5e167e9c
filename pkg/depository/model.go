package depository

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ModelSchema declares a map-backed model: its fields, defaults for fields
// left unset, and whether it carries created_at/updated_at stamps.
type ModelSchema struct {
	Name       string
	FieldNames []string
	Defaults   Row
	Timestamps bool
}

var _ ModelFactory = (*ModelSchema)(nil)

// NewModelSchema declares a model with the given fields.
func NewModelSchema(name string, fields ...string) *ModelSchema {
	return &ModelSchema{Name: name, FieldNames: fields}
}

// WithDefaults sets the defaults applied to unset fields and returns s.
func (s *ModelSchema) WithDefaults(defaults Row) *ModelSchema {
	s.Defaults = defaults
	return s
}

// WithTimestamps adds created_at and updated_at fields when missing and
// makes records stampable.
func (s *ModelSchema) WithTimestamps() *ModelSchema {
	for _, f := range []string{"created_at", "updated_at"} {
		if !s.has(f) {
			s.FieldNames = append(s.FieldNames, f)
		}
	}
	s.Timestamps = true
	return s
}

func (s *ModelSchema) Fields() []string {
	return append([]string(nil), s.FieldNames...)
}

func (s *ModelSchema) has(field string) bool {
	for _, f := range s.FieldNames {
		if f == field {
			return true
		}
	}
	return false
}

// New builds a record from attrs, then applies defaults to fields that are
// still nil. Unknown attribute names are an error.
func (s *ModelSchema) New(attrs Row) (Record, error) {
	var unknown []string
	for k := range attrs {
		if !s.has(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("model %s has no field(s) %s", s.Name, strings.Join(unknown, ", "))
	}

	m := &Model{schema: s, values: make(Row, len(s.FieldNames))}
	for k, v := range attrs {
		m.values[k] = v
	}
	for k, v := range s.Defaults {
		if m.values[k] == nil {
			m.values[k] = v
		}
	}

	if s.Timestamps {
		return &TimestampedModel{Model: m}, nil
	}
	return m, nil
}

// Model is the generic record produced by a ModelSchema.
type Model struct {
	schema *ModelSchema
	values Row
}

var _ Record = (*Model)(nil)

func (m *Model) modelSchema() *ModelSchema {
	return m.schema
}

func (m *Model) Fields() []string {
	return m.schema.Fields()
}

func (m *Model) Get(field string) interface{} {
	return m.values[field]
}

// Set assigns a declared field. Names the model does not declare are ignored.
func (m *Model) Set(field string, value interface{}) {
	if m.schema.has(field) {
		m.values[field] = value
	}
}

func (m *Model) Attributes() Row {
	out := make(Row, len(m.schema.FieldNames))
	for _, f := range m.schema.FieldNames {
		out[f] = m.values[f]
	}
	return out
}

func (m *Model) String() string {
	var sb strings.Builder
	sb.WriteString(m.schema.Name)
	sb.WriteString("{")
	for i, f := range m.schema.FieldNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", f, m.values[f])
	}
	sb.WriteString("}")
	return sb.String()
}

// TimestampedModel is a Model whose created_at and updated_at are stamped on save.
type TimestampedModel struct {
	*Model
}

var _ HasTimestamps = (*TimestampedModel)(nil)

func (m *TimestampedModel) TimestampFields() (created, updated string) {
	return "created_at", "updated_at"
}

func (m *TimestampedModel) SetCreatedAt(t time.Time) {
	m.Set("created_at", t)
}

func (m *TimestampedModel) SetUpdatedAt(t time.Time) {
	m.Set("updated_at", t)
}
