package balance

import (
	"os"

	"creditledger/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("balance.store",
	fx.Provide(ProvideStore),
)

// returningSupported reports whether the dialect can run the store's
// single-statement RETURNING updates. mysql cannot; it stays available for
// other tables but never as the balance backend.
func returningSupported(dialect string) bool {
	switch dialect {
	case "postgres", "sqlite":
		return true
	default:
		return false
	}
}

type StoreParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
	DB     *gorm.DB      `optional:"true"`
}

// ProvideStore selects the backend declared in configuration. The selection
// is explicit; a deployment never falls through to whichever connection
// happens to be alive.
func ProvideStore(p StoreParams) Store {
	switch p.Config.Balance.Backend {
	case "redis":
		if p.Redis == nil {
			zap.L().Error("[Balance] redis backend selected but no redis client configured")
			os.Exit(1)
		}
		zap.L().Info("[Balance] Using redis balance backend")
		return NewRedisStore(p.Redis)
	default:
		if p.DB == nil {
			zap.L().Error("[Balance] gorm backend selected but no database configured")
			os.Exit(1)
		}
		if !returningSupported(p.DB.Dialector.Name()) {
			zap.L().Error("[Balance] relational backend requires a RETURNING-capable dialect",
				zap.String("dialect", p.DB.Dialector.Name()))
			os.Exit(1)
		}
		if err := p.DB.AutoMigrate(&AccountBalance{}); err != nil {
			zap.L().Error("[Balance] failed to migrate account_balances", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Info("[Balance] Using relational balance backend")
		return NewGormStore(p.DB)
	}
}
