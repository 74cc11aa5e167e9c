package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/depository/pkg/depository"
)

const cliYAML = `
environment: test
databases:
  test:
    default:
      driver: sqlite
      dsn: "file:cli_schema?mode=memory&cache=shared"
      max_open_conns: 1
feed:
  type: memory
  buffer_size: 8
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSchemaCommand(t *testing.T) {
	ctx := context.Background()
	depository.ResetDatabases()
	t.Cleanup(depository.ResetDatabases)

	// holds the shared in-memory database open across the command's own connection
	keeper, err := depository.Open(ctx, depository.Options{
		Driver:       "sqlite",
		DSN:          "file:cli_schema?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = keeper.Close() })
	_, err = keeper.Exec(ctx, peopleDDL)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "depository.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliYAML), 0o600))

	out, err := runCLI(t, "--config", path, "schema", "people")
	require.NoError(t, err)
	assert.Contains(t, out, "COLUMN")
	assert.Regexp(t, `id\s*│\s*INTEGER\s*│\s*integer\s*│\s*\w+\s*│\s*PRI`, out)
	assert.Regexp(t, `verified\s*│\s*BOOLEAN\s*│\s*boolean`, out)
	assert.Regexp(t, `created_at\s*│\s*DATETIME\s*│\s*datetime`, out)
	assert.Empty(t, depository.RegisteredDatabases(), "the command closes its connection")

	_, err = runCLI(t, "--config", path, "schema", "missing")
	assert.Error(t, err)

	_, err = runCLI(t, "--config", path, "--env", "production", "schema", "people")
	assert.Error(t, err, "production has no databases")

	out, err = runCLI(t, "--config", path, "drain", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "drained 0 change(s)")
}

func TestDrainCommand_NoFeed(t *testing.T) {
	depository.ResetDatabases()
	t.Cleanup(depository.ResetDatabases)

	_, err := runCLI(t, "drain", "--once")
	assert.ErrorContains(t, err, "no change feed configured")
}
