package ledger

import (
	"context"
	"fmt"
)

// Scope selects whose balance an operation touches. Exactly one balance is
// authoritative per operation: the organization's whenever an organization
// id is supplied, the user's otherwise.
type Scope struct {
	UserID string
	OrgID  string
}

func UserScope(userID string) Scope {
	return Scope{UserID: userID}
}

func OrgScope(orgID string) Scope {
	return Scope{OrgID: orgID}
}

// Key returns the balance store key for the scope. Organization scope wins.
func (s Scope) Key() string {
	if s.OrgID != "" {
		return fmt.Sprintf("org:%s", s.OrgID)
	}
	return fmt.Sprintf("user:%s", s.UserID)
}

func (s Scope) Valid() bool {
	return s.UserID != "" || s.OrgID != ""
}

// ChargeResult reports the outcome of a validated charge. Insufficient funds
// is an expected outcome carried in OK, not an error.
type ChargeResult struct {
	OK           bool
	BalanceCents int64
}

// ScopeResolver maps a user to the scope billed for their usage. Implemented
// by the account membership adapter.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, userID string) (Scope, error)
}
