package depository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/schema"
)

var mapper = schema.NewTypeMapper()

// Pass is what a transform works on: the raw row it may rewrite in place
// and the repository configuration. Record is set while packing only.
type Pass struct {
	Row    Row
	Config *RecordConfig
	Record Record
	// Now is captured once per Pack or Unpack call.
	Now time.Time
}

// Columns returns the names of columns of kind that hold a non-nil value in the row.
func (p *Pass) Columns(ctx context.Context, kind core.ColumnType) ([]string, error) {
	names, err := p.Config.Columns(ctx, kind)
	if err != nil {
		return nil, err
	}
	present := names[:0:0]
	for _, name := range names {
		if p.Row[name] != nil {
			present = append(present, name)
		}
	}
	return present, nil
}

// Transform rewrites a raw row during Pack or Unpack.
type Transform func(ctx context.Context, p *Pass) error

// DefaultPackers returns the built-in pack chain.
func DefaultPackers() []Transform {
	return []Transform{StampTimestamps, PackIntegers, PackBooleans}
}

// DefaultUnpackers returns the built-in unpack chain.
func DefaultUnpackers() []Transform {
	return []Transform{UnpackDatetimes, UnpackDates, UnpackBooleans}
}

// Pack turns rec into the row written to storage. The packed row is then
// unpacked and copied back onto rec, so the record holds the same coerced
// values the database will return.
func Pack(ctx context.Context, rc *RecordConfig, rec Record) (Row, error) {
	raw := rec.Attributes().Clone()
	if raw == nil {
		raw = Row{}
	}

	pass := &Pass{Row: raw, Config: rc, Record: rec, Now: rc.Now()}
	for _, t := range rc.Packers() {
		if err := t(ctx, pass); err != nil {
			return nil, err
		}
	}

	unpacked, err := Unpack(ctx, rc, raw.Clone())
	if err != nil {
		return nil, err
	}
	for k, v := range unpacked {
		rec.Set(k, v)
	}
	return raw, nil
}

// Unpack runs the unpack chain over row in place and returns it.
func Unpack(ctx context.Context, rc *RecordConfig, row Row) (Row, error) {
	pass := &Pass{Row: row, Config: rc, Now: rc.Now()}
	for _, t := range rc.Unpackers() {
		if err := t(ctx, pass); err != nil {
			return nil, err
		}
	}
	return pass.Row, nil
}

// StampTimestamps sets the updated stamp of HasTimestamps records, and the
// created stamp too when the primary key is still nil.
func StampTimestamps(_ context.Context, p *Pass) error {
	rec, ok := p.Record.(HasTimestamps)
	if !ok {
		return nil
	}
	created, updated := rec.TimestampFields()

	rec.SetUpdatedAt(p.Now)
	p.Row[updated] = p.Now
	if p.Row[p.Config.PrimaryKey()] == nil {
		rec.SetCreatedAt(p.Now)
		p.Row[created] = p.Now
	}
	return nil
}

// PackIntegers coerces integer columns to int64. Numeric strings are parsed and
// fractions truncated. A value that is not a number, such as "abc", or that
// overflows int64 fails the pack with ErrCoercion rather than being stored as 0.
func PackIntegers(ctx context.Context, p *Pass) error {
	cols, err := p.Columns(ctx, core.TypeInteger)
	if err != nil {
		return err
	}
	for _, c := range cols {
		i, err := mapper.ToInt64(p.Row[c])
		if err != nil {
			return fmt.Errorf("%w: column %s: %v", ErrCoercion, c, err)
		}
		p.Row[c] = i
	}
	return nil
}

// PackBooleans stores boolean columns as 1 or 0. Bools, numbers and strings
// strconv.ParseBool accepts keep their truth value; any other value, such as
// "yes", stores 1.
func PackBooleans(ctx context.Context, p *Pass) error {
	cols, err := p.Columns(ctx, core.TypeBoolean)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if mapper.Truthy(p.Row[c]) {
			p.Row[c] = int64(1)
		} else {
			p.Row[c] = int64(0)
		}
	}
	return nil
}

// storageZero reports values a datetime column uses for "no value".
func storageZero(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case time.Time:
		return t.IsZero()
	case string:
		return t == "" || strings.HasPrefix(t, "0000-00-00")
	default:
		i, err := mapper.ToInt64(v)
		return err == nil && i == 0
	}
}

// UnpackDatetimes converts datetime columns to UTC time.Time with whole-second precision.
func UnpackDatetimes(ctx context.Context, p *Pass) error {
	cols, err := p.Columns(ctx, core.TypeDatetime)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if storageZero(p.Row[c]) {
			continue
		}
		t, err := mapper.ToTime(p.Row[c])
		if err != nil {
			return fmt.Errorf("%w: column %s: %v", ErrCoercion, c, err)
		}
		p.Row[c] = t.UTC().Truncate(time.Second)
	}
	return nil
}

// UnpackDates parses textual date columns to midnight UTC.
func UnpackDates(ctx context.Context, p *Pass) error {
	cols, err := p.Columns(ctx, core.TypeDate)
	if err != nil {
		return err
	}
	for _, c := range cols {
		s, ok := p.Row[c].(string)
		if !ok || s == "" {
			continue
		}
		d, err := mapper.ToDate(s)
		if err != nil {
			return fmt.Errorf("%w: column %s: %v", ErrCoercion, c, err)
		}
		p.Row[c] = d
	}
	return nil
}

// UnpackBooleans maps true and the integer 1 to true, anything else to false.
func UnpackBooleans(ctx context.Context, p *Pass) error {
	cols, err := p.Columns(ctx, core.TypeBoolean)
	if err != nil {
		return err
	}
	for _, c := range cols {
		v := p.Row[c]
		p.Row[c] = v == true || mapper.IsOne(v)
	}
	return nil
}
