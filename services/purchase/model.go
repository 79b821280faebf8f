package purchase

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Purchase is a pending or settled order for a product, keyed by the
// external reference handed to the payment provider at checkout.
type Purchase struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Reference   string    `gorm:"uniqueIndex" json:"reference"`
	AccountID   string    `gorm:"index" json:"account_id"`
	ProductID   string    `gorm:"index" json:"product_id"`
	Status      string    `json:"status"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

// Product is the catalog entry a purchase points at. AccessTags are the
// entitlements unlocked when the purchase is paid; WebhookURL, when set,
// receives an outbound notification on settlement.
type Product struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	Name       string         `json:"name"`
	AccessTags datatypes.JSON `json:"access_tags"`
	WebhookURL string         `json:"webhook_url"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) Tags() ([]string, error) {
	if len(p.AccessTags) == 0 {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal(p.AccessTags, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
