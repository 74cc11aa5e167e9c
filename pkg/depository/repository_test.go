package depository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/pkg/depository"
)

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	ann := mustCreate(t, people, depository.Row{
		"name":     "ann",
		"age":      "50",
		"verified": true,
		"born":     "1990-05-06",
	})
	require.NotNil(t, ann.Get("id"))
	assert.Equal(t, int64(50), ann.Get("age"))
	assert.Equal(t, true, ann.Get("verified"))
	assert.Equal(t, time.Date(1990, 5, 6, 0, 0, 0, 0, time.UTC), ann.Get("born"))

	found, err := people.Find(ctx, ann.Get("id"))
	require.NoError(t, err)
	assert.True(t, depository.Equal(ann, found), "saved %v, found %v", ann, found)
	assert.Equal(t, int64(50), found.Get("age"))

	again, err := people.Find(ctx, ann.Get("id"))
	require.NoError(t, err)
	assert.True(t, depository.Equal(found, again))
}

func TestRepository_AgeStringBecomesInteger(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	rec := mustCreate(t, people, depository.Row{"name": "bob", "age": "50"})
	found, err := people.Find(ctx, rec.Get("id"))
	require.NoError(t, err)
	assert.Equal(t, int64(50), found.Get("age"))
}

func TestRepository_DefaultsApplyToUnsetFields(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	rec := mustCreate(t, people, depository.Row{"name": "cid"})
	found, err := people.Find(ctx, rec.Get("id"))
	require.NoError(t, err)
	assert.Equal(t, false, found.Get("verified"))
	assert.Nil(t, found.Get("age"))
}

func TestRepository_Timestamps(t *testing.T) {
	ctx := context.Background()
	people, _, clock := newPeople(t, depository.Config{})
	created := clock.Now().Truncate(time.Second)

	rec := mustCreate(t, people, depository.Row{"name": "ann"})
	assert.Equal(t, created, rec.Get("created_at"))
	assert.Equal(t, rec.Get("created_at"), rec.Get("updated_at"))

	clock.Advance(90 * time.Minute)
	rec.Set("name", "bea")
	_, err := people.Save(ctx, rec)
	require.NoError(t, err)

	found, err := people.Find(ctx, rec.Get("id"))
	require.NoError(t, err)
	assert.Equal(t, "bea", found.Get("name"))
	assert.Equal(t, created, found.Get("created_at"))
	assert.Equal(t, created.Add(90*time.Minute), found.Get("updated_at"))
}

func TestRepository_ResaveKeepsRowCount(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	rec := mustCreate(t, people, depository.Row{"name": "ann", "age": 30})
	mustCreate(t, people, depository.Row{"name": "bob", "age": 40})

	for i := 0; i < 3; i++ {
		_, err := people.Save(ctx, rec)
		require.NoError(t, err)
	}
	count, err := people.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	ann := mustCreate(t, people, depository.Row{"name": "ann"})
	mustCreate(t, people, depository.Row{"name": "bob"})

	require.NoError(t, people.Delete(ctx, ann.Get("id")))
	count, err := people.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = people.Find(ctx, ann.Get("id"))
	assert.ErrorIs(t, err, depository.ErrRecordNotFound)

	// deleting again matches nothing and is fine
	require.NoError(t, people.Delete(ctx, ann.Get("id")))
	count, err = people.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_FindMissing(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})
	mustCreate(t, people, depository.Row{"name": "ann"})

	tests := []struct {
		name string
		key  interface{}
	}{
		{name: "nil key", key: nil},
		{name: "unknown string key", key: "nonexistent-key"},
		{name: "unknown integer key", key: int64(999)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := people.Find(ctx, tt.key)
			assert.ErrorIs(t, err, depository.ErrRecordNotFound)
			assert.Nil(t, rec)
		})
	}
}

func TestRepository_FindBy(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	first := mustCreate(t, people, depository.Row{"name": "x", "age": 1})
	mustCreate(t, people, depository.Row{"name": "x", "age": 2})

	rec, err := people.FindBy(ctx, "name", "x")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first.Get("id"), rec.Get("id"))
	assert.Equal(t, int64(1), rec.Get("age"))

	rec, err = people.FindBy(ctx, "name", "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})
	ann := mustCreate(t, people, depository.Row{"name": "ann", "age": 30})

	updated, err := people.Update(ctx, ann.Get("id"), func(rec depository.Record) error {
		rec.Set("age", "41")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(41), updated.Get("age"))
	assert.Equal(t, ann.Get("id"), updated.Get("id"))

	found, err := people.Find(ctx, ann.Get("id"))
	require.NoError(t, err)
	assert.Equal(t, int64(41), found.Get("age"))

	_, err = people.Update(ctx, nil, func(depository.Record) error { return nil })
	assert.ErrorIs(t, err, depository.ErrRecordNotFound)

	_, err = people.Update(ctx, ann.Get("id"), func(depository.Record) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRepository_CoercionFailure(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	_, err := people.Create(ctx, depository.Row{"name": "ann", "age": "fifty"})
	assert.ErrorIs(t, err, depository.ErrCoercion)

	count, err := people.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepository_TruthyBooleanSaves(t *testing.T) {
	ctx := context.Background()
	people, db, _ := newPeople(t, depository.Config{})

	rec, err := people.Create(ctx, depository.Row{"name": "x", "verified": "yes"})
	require.NoError(t, err)
	assert.Equal(t, true, rec.Get("verified"))

	stored, err := db.From("people").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored["verified"])
}

func TestRepository_Convert(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})

	out, err := people.Convert(ctx, depository.Row{"id": int64(7), "name": "ann", "verified": int64(1)})
	require.NoError(t, err)
	rec, ok := out.(depository.Record)
	require.True(t, ok)
	assert.Equal(t, true, rec.Get("verified"))

	out, err = people.Convert(ctx, []depository.Row{{"name": "a"}, {"name": "b"}})
	require.NoError(t, err)
	recs, ok := out.([]depository.Record)
	require.True(t, ok)
	assert.Len(t, recs, 2)

	_, err = people.Convert(ctx, "not a row")
	assert.ErrorIs(t, err, depository.ErrUnknownConversionType)

	_, err = people.Convert(ctx, depository.Row{"name": "ann", "pet": "rex"})
	assert.ErrorIs(t, err, depository.ErrUnknownConversionType)
}

func TestRepository_JoinProjection(t *testing.T) {
	ctx := context.Background()
	people, db, _ := newPeople(t, depository.Config{})

	ann := mustCreate(t, people, depository.Row{"name": "ann", "age": 30})
	mustCreate(t, people, depository.Row{"name": "bob", "age": 40})
	for _, pet := range []string{"rex", "tom"} {
		_, err := db.From("pets").Insert(ctx, core.Row{"owner_id": ann.Get("id"), "name": pet})
		require.NoError(t, err)
	}
	on := depository.On{"pets.owner_id": depository.I("people.id")}

	owners, err := people.JoinProjection("people", "pets", on).Records(ctx)
	require.NoError(t, err)
	require.Len(t, owners, 2)
	for _, owner := range owners {
		assert.Equal(t, "ann", owner.Get("name"))
	}

	projected := people.Query().
		Select(depository.I("people.name"), depository.I("pets.name").As("pet")).
		Join("pets", on).
		Order("pet")

	rows, err := projected.RawRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, depository.Row{"name": "ann", "pet": "rex"}, rows[0])
	assert.Equal(t, depository.Row{"name": "ann", "pet": "tom"}, rows[1])

	_, err = projected.Records(ctx)
	assert.ErrorIs(t, err, depository.ErrUnknownConversionType)
}

func TestRepository_JoinProjectionSQL(t *testing.T) {
	setupDB(t)
	model := depository.NewModelSchema("Owner", "id", "name")
	owners, err := depository.New(depository.Config{
		Model: func() depository.ModelFactory { return model },
		Table: "people",
	})
	require.NoError(t, err)

	query, args, err := owners.JoinProjection("people", "pets", depository.On{"pets.owner_id": depository.I("people.id")}).SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "people"."id", "people"."name" FROM "people" INNER JOIN "pets" ON ("pets"."owner_id" = "people"."id")`, query)
	assert.Empty(t, args)
}

func TestRepository_NamedScope(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})
	for _, row := range []depository.Row{
		{"name": "ann", "age": 30},
		{"name": "bob", "age": 40},
		{"name": "cid", "age": 50},
	} {
		mustCreate(t, people, row)
	}

	people.NamedScope("older_than", func(base *depository.Result, args ...interface{}) *depository.Result {
		return base.Where(depository.L("age > ?", args[0])).Order(depository.Desc("age"))
	})
	assert.Equal(t, []string{"older_than"}, people.Scopes())

	recs, err := people.Scope("older_than", 35).Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "cid", recs[0].Get("name"))
	assert.Equal(t, "bob", recs[1].Get("name"))

	// scopes compose with further operators
	n, err := people.Scope("older_than", 35).Where(depository.Eq{"name": "bob"}).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = people.Scope("younger_than", 35).Records(ctx)
	assert.ErrorIs(t, err, depository.ErrUnknownScope)
}

func TestRepository_DatasetBound(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	model := personModel()

	verified, err := depository.New(depository.Config{
		Model: func() depository.ModelFactory { return model },
		Dataset: func() (core.Dataset, error) {
			return db.From("people").Where(depository.Eq{"verified": 1}), nil
		},
	})
	require.NoError(t, err)

	mustCreate(t, verified, depository.Row{"name": "ann", "verified": true})
	mustCreate(t, verified, depository.Row{"name": "bob", "verified": false})

	n, err := verified.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	total, err := db.From("people").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	bob, err := depository.New(depository.Config{
		Model: func() depository.ModelFactory { return model },
		Table: "people",
	})
	require.NoError(t, err)
	rec, err := bob.FindBy(ctx, "name", "bob")
	require.NoError(t, err)
	_, err = verified.Find(ctx, rec.Get("id"))
	assert.ErrorIs(t, err, depository.ErrRecordNotFound)
}

func TestRepository_ResolvesDatabaseOnEachAccess(t *testing.T) {
	ctx := context.Background()
	people, _, _ := newPeople(t, depository.Config{})
	mustCreate(t, people, depository.Row{"name": "ann"})

	depository.ResetDatabases()
	_, err := people.Count(ctx)
	assert.ErrorIs(t, err, depository.ErrNoDatabase)
}

func TestNew_Validation(t *testing.T) {
	model := personModel()
	factory := func() depository.ModelFactory { return model }

	tests := []struct {
		name    string
		cfg     depository.Config
		wantErr string
	}{
		{
			name:    "missing model",
			cfg:     depository.Config{Table: "people"},
			wantErr: "model factory is required",
		},
		{
			name: "table and dataset",
			cfg: depository.Config{
				Model:   factory,
				Table:   "people",
				Dataset: func() (core.Dataset, error) { return nil, nil },
			},
			wantErr: "mutually exclusive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := depository.New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	repo, err := depository.New(depository.Config{Model: factory})
	require.NoError(t, err)
	_, err = repo.Count(context.Background())
	assert.ErrorIs(t, err, depository.ErrNoDatabase)
}
