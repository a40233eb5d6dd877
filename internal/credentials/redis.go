package credentials

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in one redis hash per scope
type RedisStore struct {
	rdb    *redis.Client
	hash   string
	sealer Sealer
}

// NewRedisStore stores values in the hash "ebook-reader:credentials:<scope>"
func NewRedisStore(rdb *redis.Client, scope string, sealer Sealer) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		hash:   fmt.Sprintf("ebook-reader:credentials:%s", scope),
		sealer: sealer,
	}
}

func (r *RedisStore) Get(ctx context.Context, keys ...string) ([]Entry, error) {
	out := make([]Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := r.rdb.HMGet(ctx, r.hash, keys...).Result()
	if err != nil {
		return nil, &StorageFailure{Op: "get", Err: err}
	}

	for i, k := range keys {
		out[i] = Entry{Key: k}
		sealed, ok := values[i].(string)
		if !ok {
			continue
		}
		value, err := unseal(r.sealer, sealed)
		if err != nil {
			return nil, &StorageFailure{Op: "get", Key: k, Err: err}
		}
		out[i].Value = value
		out[i].Present = true
	}
	return out, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	sealed, err := seal(r.sealer, value)
	if err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	if err := r.rdb.HSet(ctx, r.hash, key, sealed).Err(); err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (r *RedisStore) RemoveAll(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.HDel(ctx, r.hash, keys...).Err(); err != nil {
		return &StorageFailure{Op: "remove", Err: err}
	}
	return nil
}

// Close closes the redis client
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
