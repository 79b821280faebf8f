package entitlement

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&AccountEntitlement{}); err != nil {
		zap.L().Error("failed to migrate entitlement schema", zap.Error(err))
		return err
	}
	return nil
}
