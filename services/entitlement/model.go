package entitlement

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AccountEntitlement records the set of access tags an account has earned
// through paid purchases. Tags only ever accumulate; a later grant unions
// into the existing set and never removes tags granted before.
type AccountEntitlement struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	AccountID  string         `gorm:"uniqueIndex" json:"account_id"`
	AccessTags datatypes.JSON `json:"access_tags"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (AccountEntitlement) TableName() string {
	return "account_entitlements"
}

// Tags decodes the stored tag set. A missing or empty column is an empty
// set, not an error.
func (e *AccountEntitlement) Tags() ([]string, error) {
	if len(e.AccessTags) == 0 {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal(e.AccessTags, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, t := range existing {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	for _, t := range incoming {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	return merged
}
