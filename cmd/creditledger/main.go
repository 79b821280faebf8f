package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"creditledger/pkg/config"
	"creditledger/pkg/db"
	"creditledger/pkg/gen"
	"creditledger/pkg/hashistack/secretmanager"
	"creditledger/pkg/health"
	"creditledger/pkg/logger"
	"creditledger/pkg/redis"
	"creditledger/pkg/server"
	"creditledger/pkg/task"
	"creditledger/services/account"
	"creditledger/services/balance"
	"creditledger/services/dedup"
	"creditledger/services/entitlement"
	"creditledger/services/ledger"
	"creditledger/services/purchase"
	"creditledger/services/settlement"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		gen.Module,
		server.Module,
		health.Module,
		balance.Module,
		dedup.Module,
		account.Module,
		ledger.Module,
		entitlement.Module,
		purchase.Module,
		settlement.Module,
		fx.Invoke(db.Otel, db.Metric),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
