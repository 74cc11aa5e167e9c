package depository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/depository/pkg/depository"
)

func TestModelSchema_New(t *testing.T) {
	model := depository.NewModelSchema("Person", "id", "name", "age").
		WithDefaults(depository.Row{"age": 18})

	rec, err := model.New(depository.Row{"name": "ann"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age"}, rec.Fields())
	assert.Nil(t, rec.Get("id"))
	assert.Equal(t, 18, rec.Get("age"))

	rec, err = model.New(depository.Row{"name": "bob", "age": 40})
	require.NoError(t, err)
	assert.Equal(t, 40, rec.Get("age"), "defaults never overwrite given values")

	_, err = model.New(depository.Row{"name": "cid", "shoe": 42, "hat": 7})
	require.Error(t, err)
	assert.EqualError(t, err, "model Person has no field(s) hat, shoe")

	rec.Set("shoe", 42)
	assert.Equal(t, depository.Row{"id": nil, "name": "bob", "age": 40}, rec.Attributes())
	assert.Equal(t, "Person{id: <nil>, name: bob, age: 40}", rec.(interface{ String() string }).String())
}

func TestModelSchema_Timestamps(t *testing.T) {
	model := depository.NewModelSchema("Person", "id", "name").WithTimestamps()
	assert.Equal(t, []string{"id", "name", "created_at", "updated_at"}, model.Fields())

	rec, err := model.New(nil)
	require.NoError(t, err)
	stamped, ok := rec.(depository.HasTimestamps)
	require.True(t, ok)

	created, updated := stamped.TimestampFields()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stamped.SetCreatedAt(now)
	stamped.SetUpdatedAt(now.Add(time.Hour))
	assert.Equal(t, now, rec.Get(created))
	assert.Equal(t, now.Add(time.Hour), rec.Get(updated))

	plain, err := depository.NewModelSchema("Tag", "id").New(nil)
	require.NoError(t, err)
	_, ok = plain.(depository.HasTimestamps)
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	people := depository.NewModelSchema("Person", "id", "name", "born")
	pets := depository.NewModelSchema("Pet", "id", "name", "born")
	born := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

	a, _ := people.New(depository.Row{"id": int64(1), "name": "ann", "born": born})
	b, _ := people.New(depository.Row{"id": int64(1), "name": "ann", "born": born.In(time.FixedZone("X", 3600))})
	c, _ := people.New(depository.Row{"id": int64(1), "name": "bob", "born": born})
	d, _ := pets.New(depository.Row{"id": int64(1), "name": "ann", "born": born})

	assert.True(t, depository.Equal(a, b), "same instant in another zone")
	assert.False(t, depository.Equal(a, c))
	assert.False(t, depository.Equal(a, d), "records of different models")
	assert.False(t, depository.Equal(a, nil))
	assert.True(t, depository.Equal(nil, nil))
}
