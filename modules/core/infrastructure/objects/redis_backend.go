package objects

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
)

const redisKeyPrefix = "grc:object:"

// RedisBackend shares loaded objects between console replicas.
type RedisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisBackend(client redis.UniversalClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// NewRedisBackendFromURL parses a redis:// URL.
func NewRedisBackendFromURL(rawURL string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return NewRedisBackend(redis.NewClient(opts), ttl), nil
}

func (b *RedisBackend) Load(ctx context.Context, key string) (*instance.Instance, bool, error) {
	raw, err := b.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	var inst instance.Instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, false, errors.Wrap(err, "decode cached object")
	}
	return &inst, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, inst *instance.Instance) error {
	raw, err := json.Marshal(inst)
	if err != nil {
		return errors.Wrap(err, "encode object")
	}
	return b.client.Set(ctx, redisKeyPrefix+key, raw, b.ttl).Err()
}

func (b *RedisBackend) Remove(ctx context.Context, key string) error {
	return b.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
