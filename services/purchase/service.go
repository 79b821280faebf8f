package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"creditledger/pkg/errutil"
)

// ErrNotFound reports a reference or product id with no matching row.
var ErrNotFound = errors.New("purchase: not found")

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

// Create registers a pending purchase under the given external reference.
func (s *Service) Create(ctx context.Context, reference, accountID, productID string, amountCents int64) (*Purchase, error) {
	if reference == "" || accountID == "" || productID == "" {
		return nil, errutil.BadRequest("missing purchase fields", nil)
	}

	p := &Purchase{
		ID:          s.node.Generate().String(),
		Reference:   reference,
		AccountID:   accountID,
		ProductID:   productID,
		Status:      "pending",
		AmountCents: amountCents,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, errutil.Internal("failed to create purchase", err)
	}
	return p, nil
}

// FindByReference looks a purchase up by the external reference carried on
// the payment. Unknown references return ErrNotFound.
func (s *Service) FindByReference(ctx context.Context, reference string) (*Purchase, error) {
	var p Purchase
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to load purchase", err)
	}
	return &p, nil
}

// UpdateStatus moves the purchase to the given settlement status and
// reports whether the row actually changed. A purchase already in that
// status leaves changed false, which settlement uses to skip re-granting.
func (s *Service) UpdateStatus(ctx context.Context, reference, status string) (changed bool, err error) {
	res := s.db.WithContext(ctx).Model(&Purchase{}).
		Where("reference = ? AND status <> ?", reference, status).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, errutil.Internal("failed to update purchase status", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ProductFor loads the catalog entry for a purchase.
func (s *Service) ProductFor(ctx context.Context, p *Purchase) (*Product, error) {
	var product Product
	err := s.db.WithContext(ctx).Where("id = ?", p.ProductID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to load product", err)
	}
	return &product, nil
}
