package balance

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore keeps balances in the account_balances table. All arithmetic is
// done server-side in single statements with RETURNING, so the backend needs
// a RETURNING-capable dialect (postgres in deployments, sqlite in tests).
type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Get(ctx context.Context, key string) (int64, error) {
	var row AccountBalance
	err := s.db.WithContext(ctx).Where("account_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("gorm get", err)
	}
	return row.BalanceCents, nil
}

func (s *gormStore) Set(ctx context.Context, key string, cents int64) error {
	row := AccountBalance{AccountKey: key, BalanceCents: cents, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance_cents", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return unavailable("gorm set", err)
	}
	return nil
}

func (s *gormStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	if err := s.ensureRow(ctx, key); err != nil {
		return 0, err
	}

	var row AccountBalance
	res := s.db.WithContext(ctx).Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance_cents"}}}).
		Where("account_key = ?", key).
		Updates(map[string]any{
			"balance_cents": gorm.Expr("balance_cents + ?", delta),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return 0, unavailable("gorm atomic add", res.Error)
	}
	return row.BalanceCents, nil
}

func (s *gormStore) ChargeIfSufficient(ctx context.Context, key string, cents int64) (bool, int64, error) {
	// The balance floor check lives in the WHERE clause; zero rows affected
	// means either insufficient funds or no row yet, both of which leave the
	// balance untouched.
	var row AccountBalance
	res := s.db.WithContext(ctx).Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance_cents"}}}).
		Where("account_key = ? AND balance_cents >= ?", key, cents).
		Updates(map[string]any{
			"balance_cents": gorm.Expr("balance_cents - ?", cents),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, 0, unavailable("gorm conditional charge", res.Error)
	}
	if res.RowsAffected == 0 {
		bal, err := s.Get(ctx, key)
		if err != nil {
			return false, 0, err
		}
		return false, bal, nil
	}
	return true, row.BalanceCents, nil
}

func (s *gormStore) ensureRow(ctx context.Context, key string) error {
	row := AccountBalance{AccountKey: key, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_key"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return unavailable("gorm ensure row", err)
	}
	return nil
}
