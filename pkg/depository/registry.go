package depository

import (
	"context"

	"github.com/rzpsarthak13/depository/internal/database"
	"github.com/rzpsarthak13/depository/internal/registry"
)

type (
	// DB is an open connection pool.
	DB = database.DB
	// Options configures Open.
	Options = database.Options
)

// Open connects to a database through one of the registered drivers
// ("mysql", "postgres", "sqlite").
func Open(ctx context.Context, opts Options) (*DB, error) {
	return database.Open(ctx, opts)
}

// RegisterDatabase makes db resolvable as name for every repository in the
// process. Repositories bound with Config.Table resolve their database on
// each access, so re-registering a name re-points them.
func RegisterDatabase(name string, db *DB) error {
	return registry.Default().Register(name, db)
}

// ResolveDatabase returns the database registered as name.
func ResolveDatabase(name string) (*DB, error) {
	return registry.Default().Resolve(name)
}

// ResetDatabases forgets every registration without closing connections.
// Tests call it between cases.
func ResetDatabases() {
	registry.Default().Reset()
}

// RegisteredDatabases lists the registered names, sorted.
func RegisteredDatabases() []string {
	return registry.Default().Names()
}
