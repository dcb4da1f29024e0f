package kv

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis is the networked driver: a client to a Redis-protocol server. Per
// spec.md §4.2 it must be reconstructible after serialization — the
// *redis.Client field is unexported and rebuilt by Reopen rather than
// carried across a snapshot boundary.
type Redis struct {
	client   *redis.Client
	endpoint string
	db       int
	ctx      context.Context
}

// NewRedis dials a Redis client at endpoint/db. ctx bounds every subsequent
// operation; pass context.Background() for a driver with no deadline.
func NewRedis(ctx context.Context, endpoint string, db int) *Redis {
	return &Redis{
		client:   redis.NewClient(&redis.Options{Addr: endpoint, DB: db}),
		endpoint: endpoint,
		db:       db,
		ctx:      ctx,
	}
}

// Reopen re-dials the client from the stored endpoint/db after this driver
// has been reconstructed from a config-only snapshot (e.g. after the
// isolated-subprocess sandbox hands back a driver description across a
// pipe).
func (r *Redis) Reopen(ctx context.Context) {
	r.ctx = ctx
	r.client = redis.NewClient(&redis.Options{Addr: r.endpoint, DB: r.db})
}

func (r *Redis) Get(key string) ([]byte, bool, error) {
	v, err := r.client.Get(r.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) Set(key string, value []byte) error {
	return r.client.Set(r.ctx, key, value, 0).Err()
}

func (r *Redis) Delete(key string) error {
	return r.client.Del(r.ctx, key).Err()
}

func (r *Redis) Exists(key string) (bool, error) {
	n, err := r.client.Exists(r.ctx, key).Result()
	return n > 0, err
}

func (r *Redis) Iter(prefix string) ([]string, error) {
	var out []string
	iter := r.client.Scan(r.ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(r.ctx) {
		out = append(out, iter.Val())
	}
	sort.Strings(out)
	return out, iter.Err()
}

func (r *Redis) Keys() ([]string, error) {
	return r.client.Keys(r.ctx, "*").Result()
}

func (r *Redis) Flush() error {
	return r.client.FlushDB(r.ctx).Err()
}

func (r *Redis) IncrBy(key string, delta int64) (int64, error) {
	return r.client.IncrBy(r.ctx, key, delta).Result()
}
