package registry

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigValidator validates the backend-specific part of a configuration
// section. Backends register one validator per section and type from init.
type ConfigValidator interface {
	// Section is the configuration section validated ("cache" or "feed").
	Section() string
	// Type is the backend type within the section ("redis", "kafka", ...).
	Type() string
	// Validate checks the backend's settings in config.
	Validate(config *Config) error
}

var (
	validatorRegistry      = make(map[string]ConfigValidator)
	validatorRegistryMutex sync.RWMutex
)

func validatorKey(section, typ string) string {
	return section + ":" + typ
}

// RegisterValidator registers a config validator.
// Panics if validator is nil, has an empty section or type, or is already registered.
func RegisterValidator(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Section() == "" || validator.Type() == "" {
		panic("validator section and type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	key := validatorKey(validator.Section(), validator.Type())
	if _, exists := validatorRegistry[key]; exists {
		panic(fmt.Sprintf("validator for %q is already registered", key))
	}
	validatorRegistry[key] = validator
}

// GetValidator returns the validator registered for section and type.
func GetValidator(section, typ string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()
	v, ok := validatorRegistry[validatorKey(section, typ)]
	return v, ok
}

// ValidatorTypes lists the types registered for a section, sorted.
func ValidatorTypes(section string) []string {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()
	var types []string
	for _, v := range validatorRegistry {
		if v.Section() == section {
			types = append(types, v.Type())
		}
	}
	sort.Strings(types)
	return types
}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	mu     sync.RWMutex
	config *Config
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultConfig(),
	}
}

// DefaultConfig returns a configuration with sensible defaults: no cache,
// no change feed and no databases.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Databases:   make(map[string]map[string]DatabaseConfig),
		Cache: CacheConfig{
			Type:      "none",
			Namespace: "depository",
			TTL:       1 * time.Hour,
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Feed: FeedConfig{
			Type:       "none",
			BufferSize: 10000,
			RedisKey:   "depository:changes",
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
			},
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "depository-changes",
				GroupID:         "depository-drainer",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
		Drainer: DrainerConfig{
			Rate:         50,
			BatchSize:    100,
			MaxRetries:   5,
			PollInterval: 100 * time.Millisecond,
		},
	}
}

func cloneConfig(c *Config) *Config {
	out := *c
	out.Databases = make(map[string]map[string]DatabaseConfig, len(c.Databases))
	for env, dbs := range c.Databases {
		out.Databases[env] = maps.Clone(dbs)
	}
	return &out
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data on top of the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data on top of the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

func (cm *ConfigManager) apply(config *Config) error {
	if err := ValidateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return nil
}

// LoadFromEnv overlays environment variables on the current configuration.
// Variables follow the pattern DEPOSITORY_<SECTION>_<KEY>, for example:
//   - DEPOSITORY_ENVIRONMENT=production
//   - DEPOSITORY_DATABASE_DRIVER=postgres (the "default" connection of the active environment)
//   - DEPOSITORY_DATABASE_DSN=postgres://app@db/app
//   - DEPOSITORY_CACHE_TYPE=redis
//   - DEPOSITORY_CACHE_ENDPOINTS=localhost:6379,localhost:6380
//   - DEPOSITORY_FEED_TYPE=kafka
//   - DEPOSITORY_DRAINER_RATE=100
func (cm *ConfigManager) LoadFromEnv() error {
	cm.mu.RLock()
	config := cloneConfig(cm.config)
	cm.mu.RUnlock()

	env := envReader{prefix: "DEPOSITORY_"}
	env.str("ENVIRONMENT", &config.Environment)

	// DATABASE_* patches the "default" connection of the active environment.
	if env.any("DATABASE_") {
		dbs := config.Databases[config.Environment]
		if dbs == nil {
			dbs = make(map[string]DatabaseConfig)
			config.Databases[config.Environment] = dbs
		}
		db := dbs["default"]
		env.str("DATABASE_DRIVER", &db.Driver)
		env.str("DATABASE_DSN", &db.DSN)
		env.str("DATABASE_HOST", &db.Host)
		env.integer("DATABASE_PORT", &db.Port)
		env.str("DATABASE_NAME", &db.Database)
		env.str("DATABASE_USERNAME", &db.Username)
		env.str("DATABASE_PASSWORD", &db.Password)
		env.str("DATABASE_SSL_MODE", &db.SSLMode)
		env.integer("DATABASE_MAX_OPEN_CONNS", &db.MaxOpenConns)
		env.integer("DATABASE_MAX_IDLE_CONNS", &db.MaxIdleConns)
		dbs["default"] = db
	}

	env.str("CACHE_TYPE", &config.Cache.Type)
	env.str("CACHE_NAMESPACE", &config.Cache.Namespace)
	env.duration("CACHE_TTL", &config.Cache.TTL)
	env.list("CACHE_ENDPOINTS", &config.Cache.Redis.Endpoints)
	env.boolean("CACHE_CLUSTER_MODE", &config.Cache.Redis.ClusterMode)
	env.str("CACHE_PASSWORD", &config.Cache.Redis.Password)
	env.integer("CACHE_DB", &config.Cache.Redis.DB)
	env.integer("CACHE_POOL_SIZE", &config.Cache.Redis.PoolSize)
	env.integer("CACHE_MAX_RETRIES", &config.Cache.MaxRetries)
	env.str("CACHE_REGION", &config.Cache.DynamoDB.Region)
	env.str("CACHE_TABLE_NAME", &config.Cache.DynamoDB.TableName)
	env.str("CACHE_ENDPOINT", &config.Cache.DynamoDB.Endpoint)

	env.str("FEED_TYPE", &config.Feed.Type)
	env.integer("FEED_BUFFER_SIZE", &config.Feed.BufferSize)
	env.str("FEED_REDIS_KEY", &config.Feed.RedisKey)
	env.list("FEED_REDIS_ENDPOINTS", &config.Feed.Redis.Endpoints)
	env.list("FEED_KAFKA_BROKERS", &config.Feed.Kafka.Brokers)
	env.str("FEED_KAFKA_TOPIC", &config.Feed.Kafka.Topic)
	env.str("FEED_KAFKA_GROUP_ID", &config.Feed.Kafka.GroupID)

	env.integer("DRAINER_RATE", &config.Drainer.Rate)
	env.integer("DRAINER_BATCH_SIZE", &config.Drainer.BatchSize)
	env.integer("DRAINER_MAX_RETRIES", &config.Drainer.MaxRetries)
	env.duration("DRAINER_POLL_INTERVAL", &config.Drainer.PollInterval)

	if env.err != nil {
		return env.err
	}
	return cm.apply(config)
}

// GetConfig returns the current configuration.
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Databases returns the connections configured for the active environment.
func (cm *ConfigManager) Databases() map[string]DatabaseConfig {
	c := cm.GetConfig()
	return maps.Clone(c.Databases[c.Environment])
}

// ValidateConfig checks config and every registered backend validator it selects.
func ValidateConfig(config *Config) error {
	if config.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(config.Databases) > 0 {
		if _, ok := config.Databases[config.Environment]; !ok {
			return fmt.Errorf("no databases configured for environment %q", config.Environment)
		}
	}
	for env, dbs := range config.Databases {
		for name, db := range dbs {
			if err := validateDatabase(db); err != nil {
				return fmt.Errorf("databases.%s.%s: %w", env, name, err)
			}
		}
	}

	if err := validateSection("cache", config.Cache.Type, config); err != nil {
		return err
	}
	if config.Cache.Type != "none" && config.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be non-negative")
	}
	if err := validateSection("feed", config.Feed.Type, config); err != nil {
		return err
	}

	if config.Drainer.Rate <= 0 {
		return fmt.Errorf("drainer.rate must be greater than 0")
	}
	if config.Drainer.BatchSize <= 0 {
		return fmt.Errorf("drainer.batch_size must be greater than 0")
	}
	if config.Drainer.MaxRetries < 0 {
		return fmt.Errorf("drainer.max_retries must be non-negative")
	}
	if config.Drainer.PollInterval <= 0 {
		return fmt.Errorf("drainer.poll_interval must be greater than 0")
	}
	return nil
}

func validateDatabase(db DatabaseConfig) error {
	if db.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if db.DSN == "" && db.Database == "" {
		return fmt.Errorf("dsn or database is required")
	}
	if db.Port < 0 || db.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if db.MaxOpenConns < 0 || db.MaxIdleConns < 0 {
		return fmt.Errorf("pool sizes must be non-negative")
	}
	return nil
}

func validateSection(section, typ string, config *Config) error {
	if typ == "" {
		return fmt.Errorf("%s.type is required", section)
	}
	if typ == "none" {
		return nil
	}
	validator, ok := GetValidator(section, typ)
	if !ok {
		return fmt.Errorf("unsupported %s type: %s", section, typ)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("%s validation failed: %w", section, err)
	}
	return nil
}

// envReader reads DEPOSITORY_* variables, keeping the first parse error.
type envReader struct {
	prefix string
	err    error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(e.prefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) any(keyPrefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, e.prefix+keyPrefix) {
			return true
		}
	}
	return false
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s%s: %w", e.prefix, key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if v, ok := e.lookup(key); ok {
		*dst = strings.Split(v, ",")
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.lookup(key); ok {
		*dst = v == "true" || v == "1"
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}
