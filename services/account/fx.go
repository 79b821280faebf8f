package account

import (
	"creditledger/services/ledger"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("account.resolver",
	fx.Provide(ProvideResolver),
)

func ProvideResolver(db *gorm.DB) (ledger.ScopeResolver, error) {
	if err := db.AutoMigrate(&Membership{}); err != nil {
		return nil, err
	}
	return NewResolver(db), nil
}
