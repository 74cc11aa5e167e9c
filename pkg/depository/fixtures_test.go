package depository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/depository/internal/testutil"
	"github.com/rzpsarthak13/depository/pkg/depository"
)

const (
	peopleDDL = `CREATE TABLE people (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(255),
		age INTEGER,
		verified BOOLEAN,
		born DATE,
		created_at DATETIME,
		updated_at DATETIME
	)`
	petsDDL = `CREATE TABLE pets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER,
		name VARCHAR(255)
	)`
)

func personModel() *depository.ModelSchema {
	return depository.NewModelSchema("Person", "id", "name", "age", "verified", "born").
		WithDefaults(depository.Row{"verified": false}).
		WithTimestamps()
}

// fakeClock hands out a fixed instant until moved.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 4, 5, 6, 7, 890_000_000, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupDB registers a fresh SQLite database as "default" for the duration of the test.
func setupDB(t *testing.T) *depository.DB {
	t.Helper()
	db := testutil.NewSQLite(t, peopleDDL, petsDDL)
	depository.ResetDatabases()
	t.Cleanup(depository.ResetDatabases)
	require.NoError(t, depository.RegisterDatabase("default", db))
	return db
}

// newPeople builds a people repository over a fresh database. Unset Model,
// Table/Dataset, Clock and Logger are filled in.
func newPeople(t *testing.T, cfg depository.Config) (*depository.Repository, *depository.DB, *fakeClock) {
	t.Helper()
	db := setupDB(t)
	clock := newFakeClock()

	if cfg.Model == nil {
		model := personModel()
		cfg.Model = func() depository.ModelFactory { return model }
	}
	if cfg.Table == "" && cfg.Dataset == nil {
		cfg.Table = "people"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = testutil.NewTestLogger(t)
	}

	repo, err := depository.New(cfg)
	require.NoError(t, err)
	return repo, db, clock
}

func mustCreate(t *testing.T, repo *depository.Repository, attrs depository.Row) depository.Record {
	t.Helper()
	rec, err := repo.Create(context.Background(), attrs)
	require.NoError(t, err)
	return rec
}
