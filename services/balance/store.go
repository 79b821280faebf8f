// Package balance persists per-account credit balances. Two interchangeable
// backends satisfy the Store contract: redis (native atomic increments) and
// a relational table (single-statement conditional updates). Callers are
// backend-agnostic; the backend is chosen once at startup by configuration.
package balance

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreUnavailable wraps any transport or storage failure. A caller must
// never interpret an error as "balance is zero"; zero is returned only for a
// confirmed missing key.
var ErrStoreUnavailable = errors.New("balance store unavailable")

type Store interface {
	// Get returns the current balance in cents. A missing key is 0, not an
	// error.
	Get(ctx context.Context, key string) (int64, error)

	// Set unconditionally overwrites the balance. Administrative use only.
	Set(ctx context.Context, key string, cents int64) error

	// AtomicAdd adds delta (which may be negative) and returns the resulting
	// balance. Must not lose updates under concurrent callers on one key.
	AtomicAdd(ctx context.Context, key string, delta int64) (int64, error)

	// ChargeIfSufficient atomically decrements by cents only when the current
	// balance covers it, returning (ok, resulting balance). The check and the
	// decrement execute as one backend-side operation; there is no
	// check-then-act window.
	ChargeIfSufficient(ctx context.Context, key string, cents int64) (bool, int64, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
