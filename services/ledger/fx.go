package ledger

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		NewService,
		NewHandler,
		ProvideTokenResolver,
	),
	fx.Invoke(RegisterRoutes),
)

type tokenResolverParams struct {
	fx.In
	Redis *redis.Client `optional:"true"`
}

func ProvideTokenResolver(p tokenResolverParams) TokenResolver {
	if p.Redis == nil {
		return nil
	}
	return NewRedisTokenResolver(p.Redis)
}
