package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/depository/internal/core"
)

// ErrOutOfRange is returned for numbers that do not fit an int64.
var ErrOutOfRange = errors.New("value out of int64 range")

// timeLayouts are tried in order when parsing textual timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TypeMapper handles mapping between database types and Go values.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// baseType upper-cases a declared type and strips size, precision and sign modifiers
// (e.g., "int(11) unsigned" -> "INT").
func baseType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if idx := strings.Index(t, "("); idx > 0 {
		t = strings.TrimSpace(t[:idx])
	}
	for _, suffix := range []string{" UNSIGNED", " SIGNED", " ZEROFILL"} {
		t = strings.TrimSuffix(t, suffix)
	}
	return t
}

// Classify maps a declared database type to the coercion kind the codec uses.
func (tm *TypeMapper) Classify(dbType string) core.ColumnType {
	full := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(dbType), " ", ""))
	if strings.HasPrefix(full, "TINYINT(1)") {
		return core.TypeBoolean
	}

	switch baseType(dbType) {
	case "INT", "INTEGER", "MEDIUMINT", "BIGINT", "SMALLINT", "TINYINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL", "SMALLSERIAL", "UNSIGNED BIG INT":
		return core.TypeInteger
	case "BOOLEAN", "BOOL":
		return core.TypeBoolean
	case "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIME",
		"TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE",
		"TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE":
		return core.TypeDatetime
	case "DATE":
		return core.TypeDate
	default:
		return core.TypeOther
	}
}

// FromDriver normalizes a scanned value using the driver-reported type name.
// Text-protocol drivers (MySQL without placeholders) hand back []byte for every
// column; those are turned into int64, float64, string or left as bytes.
func (tm *TypeMapper) FromDriver(value interface{}, dbTypeName string) interface{} {
	raw, ok := value.([]byte)
	if !ok {
		return value
	}

	switch baseType(dbTypeName) {
	case "INT", "INTEGER", "MEDIUMINT", "BIGINT", "SMALLINT", "TINYINT", "INT2", "INT4", "INT8", "YEAR":
		if i, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return i
		}
		return string(raw)
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return f
		}
		return string(raw)
	case "BINARY", "VARBINARY", "BLOB", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB", "BYTEA", "BIT":
		return raw
	default:
		// DECIMAL stays textual to keep its precision.
		return string(raw)
	}
}

// ToInt64 converts numeric values, numeric strings and booleans to int64.
// Fractions are truncated; values outside the int64 range fail with ErrOutOfRange.
func (tm *TypeMapper) ToInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert number %q to int64: %w", v, err)
		}
		return floatToInt64(f)
	case []byte:
		return tm.ToInt64(string(v))
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to int64: %w", v, err)
		}
		return floatToInt64(f)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, v)
	}
	return int64(v), nil
}

// floatToInt64 truncates toward zero.
func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}
	return int64(f), nil
}

// ToBool converts booleans, numbers and boolean-like strings to bool.
// Non-zero numbers are true.
func (tm *TypeMapper) ToBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return i != 0, nil
			}
			return false, fmt.Errorf("cannot convert string %q to bool: %w", v, err)
		}
		return b, nil
	case []byte:
		return tm.ToBool(string(v))
	default:
		i, err := tm.ToInt64(value)
		if err != nil {
			return false, fmt.Errorf("cannot convert %T to bool", value)
		}
		return i != 0, nil
	}
}

// Truthy is ToBool for values ToBool understands; any other non-nil value is true.
func (tm *TypeMapper) Truthy(value interface{}) bool {
	if value == nil {
		return false
	}
	b, err := tm.ToBool(value)
	if err != nil {
		return true
	}
	return b
}

// IsOne reports whether value is an integer (of any width) equal to 1.
func (tm *TypeMapper) IsOne(value interface{}) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, err := tm.ToInt64(v)
		return err == nil && i == 1
	case json.Number:
		i, err := v.Int64()
		return err == nil && i == 1
	default:
		return false
	}
}

// ToTime converts time values, timestamp strings and Unix seconds to time.Time.
func (tm *TypeMapper) ToTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("cannot convert nil *time.Time")
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	case []byte:
		return tm.ToTime(string(v))
	case int, int32, int64, uint32, uint64, json.Number:
		secs, err := tm.ToInt64(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

// ToDate converts a value to a time.Time at UTC midnight of its calendar day.
func (tm *TypeMapper) ToDate(value interface{}) (time.Time, error) {
	t, err := tm.ToTime(value)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// Restore converts a JSON-decoded value back to the Go type the database driver
// would have produced for a column of the given kind.
func (tm *TypeMapper) Restore(value interface{}, kind core.ColumnType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch kind {
	case core.TypeInteger, core.TypeBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return tm.ToInt64(value)
	case core.TypeDatetime, core.TypeDate:
		if _, ok := value.(string); ok {
			return tm.ToTime(value)
		}
		return value, nil
	default:
		if n, ok := value.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			return n.Float64()
		}
		return value, nil
	}
}
