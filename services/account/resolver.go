// Package account resolves which balance scope an operation should bill:
// the user's organization when they belong to one, the user otherwise.
// Membership is owned by the surrounding system; this is a read-only
// collaborator adapter.
package account

import (
	"context"
	"errors"

	"creditledger/services/ledger"

	"gorm.io/gorm"
)

type gormResolver struct {
	db *gorm.DB
}

// NewResolver returns a ledger.ScopeResolver backed by the membership table.
func NewResolver(db *gorm.DB) ledger.ScopeResolver {
	return &gormResolver{db: db}
}

// ResolveScope returns the billing scope for a user. Organization scope
// takes precedence whenever a membership exists.
func (r *gormResolver) ResolveScope(ctx context.Context, userID string) (ledger.Scope, error) {
	var m Membership
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.UserScope(userID), nil
	}
	if err != nil {
		return ledger.Scope{}, err
	}
	return ledger.OrgScope(m.OrgID), nil
}
