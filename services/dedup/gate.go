// Package dedup provides the claim-a-key-once primitive used to process
// external payment events at most once inside a retry window.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Gate interface {
	// ClaimOnce atomically stores key with the given expiry when absent and
	// reports whether this caller won the claim. A false return is normal
	// control flow ("already processed"), not an error.
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisGate struct {
	rdb *redis.Client
}

func NewRedisGate(rdb *redis.Client) Gate {
	return &redisGate{rdb: rdb}
}

func (g *redisGate) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// SET NX EX is a single atomic command; no separate exists-check.
	return g.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
