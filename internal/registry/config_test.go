package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testValidator accepts a cache whose namespace is not "bad".
type testValidator struct{}

func (testValidator) Section() string { return "cache" }
func (testValidator) Type() string    { return "test" }
func (testValidator) Validate(c *Config) error {
	if c.Cache.Namespace == "bad" {
		return fmt.Errorf("namespace rejected")
	}
	return nil
}

func init() {
	RegisterValidator(testValidator{})
}

const sampleYAML = `
environment: test
databases:
  test:
    default:
      driver: sqlite
      dsn: "file:app?mode=memory"
    reporting:
      driver: postgres
      host: reports.internal
      database: reports
      username: ro
      connection_timeout: 2s
  production:
    default:
      driver: mysql
      host: db.internal
      database: app
cache:
  type: test
  namespace: app
  ttl: 30m
drainer:
  rate: 10
`

func TestConfigManager_Defaults(t *testing.T) {
	cm := NewConfigManager()
	c := cm.GetConfig()

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "none", c.Cache.Type)
	assert.Equal(t, "none", c.Feed.Type)
	assert.Equal(t, time.Hour, c.Cache.TTL)
	assert.Equal(t, 50, c.Drainer.Rate)
	assert.NoError(t, ValidateConfig(c))
	assert.Empty(t, cm.Databases())
}

func TestConfigManager_LoadFromYAML(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte(sampleYAML)))

	c := cm.GetConfig()
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "app", c.Cache.Namespace)
	assert.Equal(t, 30*time.Minute, c.Cache.TTL)
	assert.Equal(t, 10, c.Drainer.Rate)
	// untouched sections keep their defaults
	assert.Equal(t, 100, c.Drainer.BatchSize)

	dbs := cm.Databases()
	require.Len(t, dbs, 2)
	assert.Equal(t, "sqlite", dbs["default"].Driver)

	opts := dbs["reporting"].Options()
	assert.Equal(t, "postgres", opts.Driver)
	assert.Equal(t, "reports.internal", opts.Host)
	assert.Equal(t, 2*time.Second, opts.ConnectionTimeout)
}

func TestConfigManager_LoadFromJSON(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromJSON([]byte(`{
		"environment": "ci",
		"databases": {"ci": {"default": {"driver": "sqlite", "database": "/tmp/ci.db"}}},
		"feed": {"type": "none"}
	}`)))
	assert.Equal(t, "/tmp/ci.db", cm.Databases()["default"].Database)
}

func TestConfigManager_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depository.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromFile(path))
	assert.Equal(t, "test", cm.GetConfig().Environment)

	bad := filepath.Join(dir, "depository.toml")
	require.NoError(t, os.WriteFile(bad, []byte(""), 0o600))
	assert.ErrorContains(t, cm.LoadFromFile(bad), "unsupported config file format")

	assert.Error(t, cm.LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestConfigManager_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown cache", "cache: {type: memcached}", "unsupported cache type"},
		{"backend validator", "cache: {type: test, namespace: bad}", "namespace rejected"},
		{"unknown feed", "feed: {type: nats}", "unsupported feed type"},
		{"missing environment db", "environment: prod\ndatabases: {dev: {default: {driver: sqlite, dsn: x}}}", "no databases configured"},
		{"missing driver", "databases: {development: {default: {dsn: x}}}", "driver is required"},
		{"missing target", "databases: {development: {default: {driver: mysql}}}", "dsn or database is required"},
		{"drainer rate", "drainer: {rate: 0}", "drainer.rate"},
		{"malformed", "cache: [", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := NewConfigManager()
			err := cm.LoadFromYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			// a failed load leaves the previous configuration in place
			assert.Equal(t, "development", cm.GetConfig().Environment)
		})
	}
}

func TestConfigManager_LoadFromEnv(t *testing.T) {
	t.Setenv("DEPOSITORY_ENVIRONMENT", "staging")
	t.Setenv("DEPOSITORY_DATABASE_DRIVER", "postgres")
	t.Setenv("DEPOSITORY_DATABASE_HOST", "pg.internal")
	t.Setenv("DEPOSITORY_DATABASE_PORT", "6543")
	t.Setenv("DEPOSITORY_DATABASE_NAME", "app")
	t.Setenv("DEPOSITORY_CACHE_TYPE", "test")
	t.Setenv("DEPOSITORY_CACHE_ENDPOINTS", "a:6379,b:6379")
	t.Setenv("DEPOSITORY_CACHE_TTL", "90s")
	t.Setenv("DEPOSITORY_DRAINER_RATE", "7")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromEnv())

	c := cm.GetConfig()
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, []string{"a:6379", "b:6379"}, c.Cache.Redis.Endpoints)
	assert.Equal(t, 90*time.Second, c.Cache.TTL)
	assert.Equal(t, 7, c.Drainer.Rate)

	db := cm.Databases()["default"]
	assert.Equal(t, "postgres", db.Driver)
	assert.Equal(t, "pg.internal", db.Host)
	assert.Equal(t, 6543, db.Port)
}

func TestConfigManager_LoadFromEnvOverlaysFile(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte(sampleYAML)))

	t.Setenv("DEPOSITORY_DATABASE_DSN", "file:other?mode=memory")
	require.NoError(t, cm.LoadFromEnv())

	dbs := cm.Databases()
	assert.Equal(t, "sqlite", dbs["default"].Driver)
	assert.Equal(t, "file:other?mode=memory", dbs["default"].DSN)
	assert.Equal(t, "reports.internal", dbs["reporting"].Host)
}

func TestConfigManager_LoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("DEPOSITORY_DRAINER_RATE", "fast")
	cm := NewConfigManager()
	assert.ErrorContains(t, cm.LoadFromEnv(), "DEPOSITORY_DRAINER_RATE")
}

func TestValidatorRegistry(t *testing.T) {
	v, ok := GetValidator("cache", "test")
	require.True(t, ok)
	assert.Equal(t, "test", v.Type())

	_, ok = GetValidator("feed", "test")
	assert.False(t, ok)

	assert.Contains(t, ValidatorTypes("cache"), "test")
	assert.Panics(t, func() { RegisterValidator(testValidator{}) })
	assert.Panics(t, func() { RegisterValidator(nil) })
}
