package account

import "time"

// Membership links a user to the organization billed for their usage.
// The unique index on user_id enforces the one-organization-per-user
// invariant the billing scope resolution relies on.
type Membership struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	OrgID     string    `gorm:"column:org_id;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Membership) TableName() string {
	return "org_memberships"
}
