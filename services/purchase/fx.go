package purchase

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("purchase.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Purchase{}, &Product{}); err != nil {
		zap.L().Error("failed to migrate purchase schema", zap.Error(err))
		return err
	}
	return nil
}
