package kvstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/registry"
)

func TestMemoryKVStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Minute))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	got[0] = 'x'
	again, _ := store.Get(ctx, "a")
	assert.Equal(t, []byte("1"), again, "Get must return a copy")

	ok, err := store.Exists(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = store.Exists(ctx, "b")
	assert.False(t, ok)
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
	assert.Equal(t, 1, store.Len(), "expired entry is dropped on read")

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	ok, _ = store.Exists(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, store.Close())
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Set(ctx, "a", nil, 0), ErrClosed)
}

func TestMemoryKVStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			_ = store.Set(ctx, key, []byte(key), 0)
			_, _ = store.Get(ctx, key)
			_, _ = store.Exists(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, store.Len())
}

func TestFactory_Registry(t *testing.T) {
	assert.Equal(t, []string{"dynamodb", "memory", "redis"}, Types())
	assert.True(t, IsTypeRegistered("memory"))
	assert.False(t, IsTypeRegistered("memcached"))

	_, err := Create(context.Background(), registry.CacheConfig{}, nil)
	assert.EqualError(t, err, "kvstore type is required")

	_, err = Create(context.Background(), registry.CacheConfig{Type: "memcached"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported KV store type: memcached")

	_, err = Create(context.Background(), registry.CacheConfig{Type: "redis"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration for redis")

	store, err := Create(context.Background(), registry.CacheConfig{Type: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryKVStore{}, store)
	require.NoError(t, store.Close())
}

func TestFactory_RegistersValidators(t *testing.T) {
	for _, typ := range []string{"memory", "redis", "dynamodb"} {
		v, ok := registry.GetValidator("cache", typ)
		require.True(t, ok, typ)
		assert.Equal(t, "cache", v.Section())
	}

	cfg := registry.DefaultConfig()
	cfg.Cache.Type = "dynamodb"
	v, _ := registry.GetValidator("cache", "dynamodb")
	assert.EqualError(t, v.Validate(cfg), "dynamodb region is required")
}

func TestRedisFactory_Validate(t *testing.T) {
	valid := registry.CacheConfig{
		Type: "redis",
		Redis: registry.RedisConfig{
			Endpoints: []string{"localhost:6379"},
			PoolSize:  10,
		},
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	require.NoError(t, RedisFactory{}.Validate(valid))

	tests := []struct {
		name   string
		mutate func(c *registry.CacheConfig)
		want   string
	}{
		{"no endpoints", func(c *registry.CacheConfig) { c.Redis.Endpoints = nil }, "at least one endpoint is required for Redis"},
		{"bad db", func(c *registry.CacheConfig) { c.Redis.DB = 16 }, "redis db must be between 0 and 15, got: 16"},
		{"cluster db", func(c *registry.CacheConfig) { c.Redis.ClusterMode = true; c.Redis.DB = 1 }, "redis cluster mode only supports db 0"},
		{"pool", func(c *registry.CacheConfig) { c.Redis.PoolSize = 0 }, "pool_size must be greater than 0, got: 0"},
		{"idle", func(c *registry.CacheConfig) { c.Redis.MinIdleConns = -1 }, "min_idle_conns must be non-negative, got: -1"},
		{"dial", func(c *registry.CacheConfig) { c.DialTimeout = 0 }, "dial_timeout must be greater than 0, got: 0s"},
		{"retries", func(c *registry.CacheConfig) { c.MaxRetries = -1 }, "max_retries must be non-negative, got: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Redis.Endpoints = append([]string(nil), valid.Redis.Endpoints...)
			tt.mutate(&cfg)
			assert.EqualError(t, RedisFactory{}.Validate(cfg), tt.want)
		})
	}
}

func TestDynamoDBFactory_Validate(t *testing.T) {
	cfg := registry.CacheConfig{DynamoDB: registry.DynamoDBConfig{Region: "us-east-1", TableName: "cache"}}
	require.NoError(t, DynamoDBFactory{}.Validate(cfg))

	cfg.DynamoDB.AccessKeyID = "AKID"
	assert.EqualError(t, DynamoDBFactory{}.Validate(cfg), "dynamodb access_key_id and secret_access_key must be set together")

	cfg.DynamoDB.TableName = ""
	assert.EqualError(t, DynamoDBFactory{}.Validate(cfg), "dynamodb table_name is required")
}

// fakeDynamo keeps items in a map keyed by the "key" attribute.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	return item["key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDBKVStore(t *testing.T) {
	ctx := context.Background()
	api := newFakeDynamo()
	store := NewDynamoDBKVStore(api, "cache", nil)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Second))
	assert.Equal(t, "1700000010", api.items["k"]["ttl"].(*types.AttributeValueMemberN).Value)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(11 * time.Second)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
	ok, _ = store.Exists(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))
	_, hasTTL := api.items["forever"]["ttl"]
	assert.False(t, hasTTL)

	require.NoError(t, store.Delete(ctx, "forever"))
	assert.NotContains(t, api.items, "forever")

	api.err = errors.New("throttled")
	_, err = store.Get(ctx, "k")
	assert.ErrorContains(t, err, "throttled")
	assert.NotErrorIs(t, err, core.ErrKeyNotFound)

	require.NoError(t, store.Close())
	_, err = store.Exists(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}
