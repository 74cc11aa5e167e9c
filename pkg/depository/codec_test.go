package depository_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/depository/pkg/depository"
)

func recordConfig(t *testing.T, cfg depository.Config) *depository.RecordConfig {
	t.Helper()
	setupDB(t)
	if cfg.Model == nil {
		model := personModel()
		cfg.Model = func() depository.ModelFactory { return model }
	}
	if cfg.Table == "" && cfg.Dataset == nil {
		cfg.Table = "people"
	}
	rc, err := depository.NewRecordConfig(cfg)
	require.NoError(t, err)
	return rc
}

func TestUnpack_Defaults(t *testing.T) {
	ctx := context.Background()
	rc := recordConfig(t, depository.Config{})

	row, err := depository.Unpack(ctx, rc, depository.Row{
		"id":         int64(1),
		"name":       "ann",
		"verified":   int64(1),
		"born":       "1990-05-06",
		"created_at": "2024-03-04 05:06:07.891+00:00",
		"updated_at": "0000-00-00 00:00:00",
	})
	require.NoError(t, err)

	assert.Equal(t, true, row["verified"])
	assert.Equal(t, time.Date(1990, 5, 6, 0, 0, 0, 0, time.UTC), row["born"])
	assert.Equal(t, time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC), row["created_at"])
	assert.Equal(t, "0000-00-00 00:00:00", row["updated_at"], "storage zero is left alone")
}

func TestUnpack_Booleans(t *testing.T) {
	ctx := context.Background()
	rc := recordConfig(t, depository.Config{})

	tests := []struct {
		in   interface{}
		want bool
	}{
		{in: int64(1), want: true},
		{in: true, want: true},
		{in: "1", want: false},
		{in: int64(0), want: false},
		{in: false, want: false},
		{in: "yes", want: false},
		{in: int64(2), want: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T %v", tt.in, tt.in), func(t *testing.T) {
			row, err := depository.Unpack(ctx, rc, depository.Row{"verified": tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.want, row["verified"])
		})
	}
}

func TestUnpack_Idempotent(t *testing.T) {
	ctx := context.Background()
	rc := recordConfig(t, depository.Config{})

	rows := []depository.Row{
		{"id": int64(1), "verified": int64(1), "born": "2001-02-03", "created_at": "2024-03-04T05:06:07.5Z"},
		{"id": int64(2), "verified": int64(0), "born": nil, "created_at": time.Date(2024, 3, 4, 5, 6, 7, 999, time.FixedZone("X", 3600))},
		{"id": int64(3), "name": "only a name"},
	}
	for _, row := range rows {
		once, err := depository.Unpack(ctx, rc, row.Clone())
		require.NoError(t, err)
		twice, err := depository.Unpack(ctx, rc, once.Clone())
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestPack_CoercesAndSyncsRecord(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rc := recordConfig(t, depository.Config{Clock: clock.Now})

	rec, err := rc.Factory().New(depository.Row{"name": "ann", "age": "50", "verified": true})
	require.NoError(t, err)

	raw, err := depository.Pack(ctx, rc, rec)
	require.NoError(t, err)

	// the packed row is what storage gets
	assert.Equal(t, int64(50), raw["age"])
	assert.Equal(t, int64(1), raw["verified"])
	assert.Equal(t, clock.Now(), raw["created_at"])
	assert.Equal(t, clock.Now(), raw["updated_at"])

	// the record holds the unpacked view of it
	assert.Equal(t, int64(50), rec.Get("age"))
	assert.Equal(t, true, rec.Get("verified"))
	assert.Equal(t, clock.Now().Truncate(time.Second), rec.Get("created_at"))
}

func TestPack_Booleans(t *testing.T) {
	ctx := context.Background()
	rc := recordConfig(t, depository.Config{})

	tests := []struct {
		in   interface{}
		want int64
	}{
		{in: true, want: 1},
		{in: false, want: 0},
		{in: int64(2), want: 1},
		{in: 0, want: 0},
		{in: "true", want: 1},
		{in: "0", want: 0},
		{in: "false", want: 0},
		{in: "yes", want: 1},
		{in: "on", want: 1},
		{in: struct{}{}, want: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T %v", tt.in, tt.in), func(t *testing.T) {
			rec, err := rc.Factory().New(depository.Row{"verified": tt.in})
			require.NoError(t, err)

			raw, err := depository.Pack(ctx, rc, rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw["verified"])
			assert.Equal(t, tt.want == 1, rec.Get("verified"))
		})
	}
}

func TestPack_IntegerCoercionFailures(t *testing.T) {
	ctx := context.Background()
	rc := recordConfig(t, depository.Config{})

	for _, in := range []interface{}{"abc", uint64(math.MaxUint64), 1e30, "99999999999999999999"} {
		rec, err := rc.Factory().New(depository.Row{"age": in})
		require.NoError(t, err)
		_, err = depository.Pack(ctx, rc, rec)
		assert.ErrorIs(t, err, depository.ErrCoercion, "%#v", in)
	}
}

func TestPack_KeepsCreatedAtOfPersistedRecords(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rc := recordConfig(t, depository.Config{Clock: clock.Now})
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	rec, err := rc.Factory().New(depository.Row{"id": int64(9), "created_at": created})
	require.NoError(t, err)

	raw, err := depository.Pack(ctx, rc, rec)
	require.NoError(t, err)
	assert.Equal(t, created, raw["created_at"])
	assert.Equal(t, clock.Now(), raw["updated_at"])
}

func TestPack_CustomChains(t *testing.T) {
	ctx := context.Background()
	var calls []string
	trace := func(name string) depository.Transform {
		return func(context.Context, *depository.Pass) error {
			calls = append(calls, name)
			return nil
		}
	}

	rc := recordConfig(t, depository.Config{
		Packers:        []depository.Transform{trace("pack")},
		ExtraPackers:   []depository.Transform{trace("extra-pack")},
		ExtraUnpackers: []depository.Transform{trace("extra-unpack")},
	})
	rec, err := rc.Factory().New(depository.Row{"age": "50"})
	require.NoError(t, err)

	raw, err := depository.Pack(ctx, rc, rec)
	require.NoError(t, err)
	assert.Equal(t, "50", raw["age"], "replaced pack chain skips integer coercion")
	assert.Nil(t, raw["created_at"], "replaced pack chain skips stamping")
	assert.Equal(t, []string{"pack", "extra-pack", "extra-unpack"}, calls)

	boom := func(context.Context, *depository.Pass) error { return assert.AnError }
	failing := recordConfig(t, depository.Config{ExtraPackers: []depository.Transform{boom}})
	rec, err = failing.Factory().New(nil)
	require.NoError(t, err)
	_, err = depository.Pack(ctx, failing, rec)
	assert.ErrorIs(t, err, assert.AnError)
}

const documentsDDL = `CREATE TABLE documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title VARCHAR(255),
	meta TEXT
)`

// packMeta stores the nested meta attribute as a YAML document.
func packMeta(_ context.Context, p *depository.Pass) error {
	v, ok := p.Row["meta"]
	if !ok || v == nil {
		return nil
	}
	if _, isText := v.(string); isText {
		return nil
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	p.Row["meta"] = string(out)
	return nil
}

func unpackMeta(_ context.Context, p *depository.Pass) error {
	s, ok := p.Row["meta"].(string)
	if !ok {
		return nil
	}
	var meta map[string]interface{}
	if err := yaml.Unmarshal([]byte(s), &meta); err != nil {
		return err
	}
	p.Row["meta"] = meta
	return nil
}

func TestRepository_YAMLTransforms(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	_, err := db.Exec(ctx, documentsDDL)
	require.NoError(t, err)

	model := depository.NewModelSchema("Document", "id", "title", "meta")
	docs, err := depository.New(depository.Config{
		Model:          func() depository.ModelFactory { return model },
		Table:          "documents",
		ExtraPackers:   []depository.Transform{packMeta},
		ExtraUnpackers: []depository.Transform{unpackMeta},
	})
	require.NoError(t, err)

	meta := map[string]interface{}{"size": 3, "tags": []interface{}{"a", "b"}}
	doc, err := docs.Create(ctx, depository.Row{"title": "notes", "meta": meta})
	require.NoError(t, err)
	assert.Equal(t, meta, doc.Get("meta"))

	stored, err := db.From("documents").First(ctx)
	require.NoError(t, err)
	assert.Contains(t, stored["meta"], "tags:")

	found, err := docs.Find(ctx, doc.Get("id"))
	require.NoError(t, err)
	assert.Equal(t, meta, found.Get("meta"))
	assert.True(t, depository.Equal(doc, found))
}
