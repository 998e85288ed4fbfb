package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations keeps the blocklist as keys that expire together with
// the token they block.
type RedisRevocations struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRedisRevocations(rdb redis.Cmdable, prefix string) *RedisRevocations {
	return &RedisRevocations{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisRevocations) key(jti string) string {
	return r.prefix + "bl:" + jti
}

func (r *RedisRevocations) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.SetNX(ctx, r.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke: %w", err)
	}
	return nil
}

func (r *RedisRevocations) Exists(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis revocation lookup: %w", err)
	}
	return n > 0, nil
}
