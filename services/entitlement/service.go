package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"creditledger/pkg/errutil"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node}
}

// Grant unions tags into the account's entitlement set. Granting the same
// tags twice is a no-op, so settlement retries are safe to replay through
// here. The row is locked for the read-merge-write so concurrent grants for
// the same account cannot drop each other's tags.
func (s *Service) Grant(ctx context.Context, accountID string, tags []string) error {
	if accountID == "" {
		return errutil.BadRequest("missing account id", nil)
	}
	if len(tags) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		read := tx
		// sqlite serializes writers on its own and rejects FOR UPDATE.
		if tx.Dialector.Name() != "sqlite" {
			read = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var row AccountEntitlement
		err := read.Where("account_id = ?", accountID).First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		existing, decodeErr := row.Tags()
		if decodeErr != nil {
			return decodeErr
		}

		merged := mergeTags(existing, tags)
		if len(merged) == len(existing) {
			return nil
		}

		encoded, encodeErr := json.Marshal(merged)
		if encodeErr != nil {
			return encodeErr
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&AccountEntitlement{
				ID:         s.node.Generate().String(),
				AccountID:  accountID,
				AccessTags: encoded,
				CreatedAt:  time.Now(),
				UpdatedAt:  time.Now(),
			}).Error
		}

		return tx.Model(&AccountEntitlement{}).
			Where("account_id = ?", accountID).
			Updates(map[string]any{
				"access_tags": encoded,
				"updated_at":  time.Now(),
			}).Error
	})
	if err != nil {
		zap.L().Error("failed to grant entitlements",
			zap.String("account_id", accountID),
			zap.Strings("tags", tags),
			zap.Error(err))
		return errutil.Internal("failed to grant entitlements", err)
	}

	zap.L().Info("entitlements granted",
		zap.String("account_id", accountID),
		zap.Strings("tags", tags))
	return nil
}

// List returns the account's current tag set. Accounts without a row have
// an empty set.
func (s *Service) List(ctx context.Context, accountID string) ([]string, error) {
	if accountID == "" {
		return nil, errutil.BadRequest("missing account id", nil)
	}

	var row AccountEntitlement
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errutil.Internal("failed to load entitlements", err)
	}

	tags, err := row.Tags()
	if err != nil {
		return nil, errutil.Internal("corrupt entitlement tag set", err)
	}
	return tags, nil
}
