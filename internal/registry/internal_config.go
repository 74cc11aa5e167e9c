package registry

import (
	"time"

	"github.com/rzpsarthak13/depository/internal/database"
)

// Config is the full configuration of a depository process.
type Config struct {
	// Environment selects which entry of Databases is connected.
	Environment string `yaml:"environment" json:"environment"`

	// Databases maps environment -> connection name -> connection settings.
	Databases map[string]map[string]DatabaseConfig `yaml:"databases" json:"databases"`

	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Feed    FeedConfig    `yaml:"feed" json:"feed"`
	Drainer DrainerConfig `yaml:"drainer" json:"drainer"`
}

// DatabaseConfig describes one named connection.
type DatabaseConfig struct {
	Driver            string        `yaml:"driver" json:"driver"`
	DSN               string        `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Host              string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port              int           `yaml:"port,omitempty" json:"port,omitempty"`
	Database          string        `yaml:"database,omitempty" json:"database,omitempty"`
	Username          string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode           string        `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// Options converts the settings into database.Options.
func (c DatabaseConfig) Options() database.Options {
	return database.Options{
		Driver:            c.Driver,
		DSN:               c.DSN,
		Host:              c.Host,
		Port:              c.Port,
		Database:          c.Database,
		Username:          c.Username,
		Password:          c.Password,
		SSLMode:           c.SSLMode,
		MaxOpenConns:      c.MaxOpenConns,
		MaxIdleConns:      c.MaxIdleConns,
		ConnMaxLifetime:   c.ConnMaxLifetime,
		ConnMaxIdleTime:   c.ConnMaxIdleTime,
		ConnectionTimeout: c.ConnectionTimeout,
	}
}

// CacheConfig configures the record cache in front of Find.
// Type is one of none, memory, redis or dynamodb.
type CacheConfig struct {
	Type         string         `yaml:"type" json:"type"`
	Namespace    string         `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	TTL          time.Duration  `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	Redis        RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB     DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	MaxRetries   int            `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration  `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration  `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration  `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains Redis connection settings shared by the cache and the feed.
type RedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	ClusterMode  bool     `yaml:"cluster_mode,omitempty" json:"cluster_mode,omitempty"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int      `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int      `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// FeedConfig configures the change feed written by Save and Delete.
// Type is one of none, memory, redis or kafka.
type FeedConfig struct {
	Type       string      `yaml:"type" json:"type"`
	BufferSize int         `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
	RedisKey   string      `yaml:"redis_key,omitempty" json:"redis_key,omitempty"`
	Redis      RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
	Kafka      KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// KafkaConfig contains Kafka-specific configuration.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// DrainerConfig controls how fast the change feed is consumed.
type DrainerConfig struct {
	Rate         int           `yaml:"rate" json:"rate"` // changes per second
	BatchSize    int           `yaml:"batch_size" json:"batch_size"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}
