package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the optional network Store implementation backed by
// github.com/redis/go-redis/v9 (spec §6.4: "a network implementation
// is optional"). Sorted-set calls mirror the ZAdd(ctx, queue,
// redis.Z{Score, Member}) shape used for deadline-ordered queues
// elsewhere in the corpus.
type Redis struct {
	client *redis.Client
}

// NewRedis dials addr (host:port) and returns a Redis-backed Store.
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) SetEx(ctx context.Context, key string, ttlSeconds int, value string) error {
	return r.client.SetEx(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) ZAdd(ctx context.Context, queue string, member ZMember) error {
	return r.client.ZAdd(ctx, queue, redis.Z{Score: member.Score, Member: member.Member}).Err()
}

func (r *Redis) ZRange(ctx context.Context, queue string, start, stop int) ([]string, error) {
	return r.client.ZRange(ctx, queue, int64(start), int64(stop)).Result()
}

func (r *Redis) ZRem(ctx context.Context, queue string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.ZRem(ctx, queue, args...).Err()
}

func (r *Redis) ZCard(ctx context.Context, queue string) (int64, error) {
	return r.client.ZCard(ctx, queue).Result()
}
