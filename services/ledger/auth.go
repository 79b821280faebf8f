package ledger

import (
	"context"
	"errors"

	"creditledger/pkg/errutil"
	"creditledger/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// TokenResolver turns an end-user bearer token into the user id it was
// issued for. Token issuance lives outside this core; we only look tokens
// up.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

type redisTokenResolver struct {
	rdb *redis.Client
}

func NewRedisTokenResolver(rdb *redis.Client) TokenResolver {
	return &redisTokenResolver{rdb: rdb}
}

func (r *redisTokenResolver) Resolve(ctx context.Context, token string) (string, error) {
	userID, err := r.rdb.Get(ctx, rediskey.BuildAuthTokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", errutil.Unauthorized("invalid bearer token", nil)
	}
	if err != nil {
		return "", errutil.ServiceUnavailable("token lookup failed", err)
	}
	return userID, nil
}
