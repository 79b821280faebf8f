package balance

import (
	"context"
	"errors"
	"fmt"

	"creditledger/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// chargeScript performs the floor-at-zero conditional decrement server-side
// so concurrent spenders on the same key cannot interleave between the check
// and the write.
var chargeScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if bal < amount then
  return {0, bal}
end
return {1, redis.call('DECRBY', KEYS[1], amount)}
`)

type redisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.rdb.Get(ctx, rediskey.BuildBalanceKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("redis get", err)
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, key string, cents int64) error {
	if err := s.rdb.Set(ctx, rediskey.BuildBalanceKey(key), cents, 0).Err(); err != nil {
		return unavailable("redis set", err)
	}
	return nil
}

func (s *redisStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	val, err := s.rdb.IncrBy(ctx, rediskey.BuildBalanceKey(key), delta).Result()
	if err != nil {
		return 0, unavailable("redis incrby", err)
	}
	return val, nil
}

func (s *redisStore) ChargeIfSufficient(ctx context.Context, key string, cents int64) (bool, int64, error) {
	res, err := chargeScript.Run(ctx, s.rdb, []string{rediskey.BuildBalanceKey(key)}, cents).Slice()
	if err != nil {
		return false, 0, unavailable("redis charge script", err)
	}
	if len(res) != 2 {
		return false, 0, unavailable("redis charge script", fmt.Errorf("unexpected reply %v", res))
	}

	ok, _ := res[0].(int64)
	bal, _ := res[1].(int64)
	return ok == 1, bal, nil
}
