package balance

import "time"

// AccountBalance is one row per account scope key. The key embeds the scope
// ("user:<id>" or "org:<id>") so user and organization balances never
// collide.
type AccountBalance struct {
	AccountKey   string    `gorm:"column:account_key;primaryKey"`
	BalanceCents int64     `gorm:"column:balance_cents"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (AccountBalance) TableName() string {
	return "account_balances"
}
