package depository

import (
	"bytes"
	"reflect"
	"time"

	"github.com/rzpsarthak13/depository/internal/core"
)

// Row is an untyped mapping from column name to value.
type Row = core.Row

// Record is a domain object with a fixed, ordered set of named attributes.
// The primary key attribute is nil until the record has been saved.
type Record interface {
	// Fields lists the attribute names in declaration order.
	Fields() []string
	// Get returns the value of an attribute, nil when unset.
	Get(field string) interface{}
	// Set assigns an attribute.
	Set(field string, value interface{})
	// Attributes returns every field with its current value.
	Attributes() Row
}

// HasTimestamps marks records whose created and updated stamps are
// maintained by the StampTimestamps packer.
type HasTimestamps interface {
	// TimestampFields names the created and updated attributes.
	TimestampFields() (created, updated string)
	SetCreatedAt(t time.Time)
	SetUpdatedAt(t time.Time)
}

// ModelFactory builds records of one model.
type ModelFactory interface {
	Fields() []string
	New(attrs Row) (Record, error)
}

type schemaHolder interface {
	modelSchema() *ModelSchema
}

// Equal reports whether a and b are records of the same model holding the
// same attributes.
func Equal(a, b Record) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if sa, ok := a.(schemaHolder); ok {
		if sa.modelSchema() != b.(schemaHolder).modelSchema() {
			return false
		}
	}

	left, right := a.Attributes(), b.Attributes()
	if len(left) != len(right) {
		return false
	}
	for k, lv := range left {
		rv, ok := right[k]
		if !ok || !valuesEqual(lv, rv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	default:
		return reflect.DeepEqual(a, b)
	}
}
