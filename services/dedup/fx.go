package dedup

import (
	"creditledger/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dedup.gate",
	fx.Provide(ProvideGate),
)

type GateParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func ProvideGate(p GateParams) Gate {
	if p.Config.Dedup.Fallback == "memory" || p.Redis == nil {
		zap.L().Warn("[Dedup] Using in-memory claim gate; not safe for horizontally scaled deployments")
		return NewMemoryGate()
	}
	return NewRedisGate(p.Redis)
}
