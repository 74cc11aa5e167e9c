package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/depository/internal/database"
)

var sqliteCounter atomic.Int64

// NewSQLite opens a private in-memory SQLite database and runs ddl against it.
// The database is closed when the test ends.
func NewSQLite(t testing.TB, ddl ...string) *database.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", sqliteCounter.Add(1))

	db, err := database.Open(context.Background(), database.Options{
		Driver:       "sqlite",
		DSN:          dsn,
		// a single connection keeps shared-cache table locks out of the way
		MaxOpenConns: 1,
		Logger:       NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range ddl {
		_, err := db.Exec(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
	return db
}
