package settlement

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"creditledger/pkg/config"
	"creditledger/pkg/money"
	"creditledger/pkg/rediskey"
	"creditledger/pkg/task"
	"creditledger/services/dedup"
	"creditledger/services/ledger"
	"creditledger/services/purchase"
)

// CreditLedger is the slice of the ledger service settlement needs: credit
// an account after an approved top-up.
type CreditLedger interface {
	Add(ctx context.Context, scope ledger.Scope, cents int64) (int64, error)
}

// Granter unlocks product entitlements once a purchase is paid.
type Granter interface {
	Grant(ctx context.Context, accountID string, tags []string) error
}

// PurchaseStore resolves and settles purchase records by external
// reference.
type PurchaseStore interface {
	FindByReference(ctx context.Context, reference string) (*purchase.Purchase, error)
	UpdateStatus(ctx context.Context, reference, status string) (bool, error)
	ProductFor(ctx context.Context, p *purchase.Purchase) (*purchase.Product, error)
}

// Processor settles provider payment events. The callback is only a hint:
// the payment is re-fetched from the provider, and the dedup claim is taken
// only once a mutation is certain, so transient fetch failures never burn
// an event's single processing slot.
type Processor struct {
	provider     ProviderClient
	gate         dedup.Gate
	ledger       CreditLedger
	resolver     ledger.ScopeResolver
	purchases    PurchaseStore
	entitlements Granter
	enqueuer     task.Enqueuer
	cfg          *config.Config
}

type ProcessorParams struct {
	fx.In
	Provider     ProviderClient
	Gate         dedup.Gate
	Ledger       *ledger.Service
	Resolver     ledger.ScopeResolver
	Purchases    *purchase.Service
	Entitlements Granter
	Enqueuer     task.Enqueuer `optional:"true"`
	Config       *config.Config
}

func NewProcessor(p ProcessorParams) *Processor {
	return &Processor{
		provider:     p.Provider,
		gate:         p.Gate,
		ledger:       p.Ledger,
		resolver:     p.Resolver,
		purchases:    p.Purchases,
		entitlements: p.Entitlements,
		enqueuer:     p.Enqueuer,
		cfg:          p.Config,
	}
}

// Process handles one webhook event end to end. Errors are returned for
// logging only; the HTTP handler acknowledges the provider regardless.
func (s *Processor) Process(ctx context.Context, evt WebhookEvent) error {
	if !evt.IsPayment() || evt.PaymentID == "" {
		settlementEvents.WithLabelValues(kindOther, outcomeIgnored).Inc()
		return nil
	}

	payment, err := s.provider.GetPayment(ctx, evt.PaymentID)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			settlementEvents.WithLabelValues(kindOther, outcomeUnavailable).Inc()
			zap.L().Warn("payment fetch failed, event not settled",
				zap.String("payment_id", evt.PaymentID),
				zap.Error(err))
			return err
		}
		settlementEvents.WithLabelValues(kindOther, outcomeError).Inc()
		return err
	}

	if accountID, ok := ParseTopUpReference(payment.ExternalReference); ok {
		return s.settleTopUp(ctx, evt.PaymentID, accountID, payment)
	}
	return s.settlePurchase(ctx, evt.PaymentID, payment)
}

func (s *Processor) settleTopUp(ctx context.Context, eventID, accountID string, payment *Payment) error {
	if payment.Status != "approved" {
		// Not money yet. No claim either: the approval callback for this
		// same payment id must still be able to win it.
		settlementEvents.WithLabelValues(kindTopUp, outcomeIgnored).Inc()
		zap.L().Info("top-up not approved, skipping",
			zap.String("payment_id", eventID),
			zap.String("status", payment.Status))
		return nil
	}

	won, err := s.gate.ClaimOnce(ctx, rediskey.BuildPaymentClaimKey(eventID), s.cfg.Dedup.ClaimTTL)
	if err != nil {
		settlementEvents.WithLabelValues(kindTopUp, outcomeError).Inc()
		zap.L().Error("dedup claim failed",
			zap.String("payment_id", eventID),
			zap.String("stage", "claim"),
			zap.Error(err))
		return err
	}
	if !won {
		settlementEvents.WithLabelValues(kindTopUp, outcomeDuplicate).Inc()
		zap.L().Info("duplicate top-up event, already settled",
			zap.String("payment_id", eventID))
		return nil
	}

	scope, err := s.resolver.ResolveScope(ctx, accountID)
	if err != nil {
		settlementEvents.WithLabelValues(kindTopUp, outcomeError).Inc()
		zap.L().Error("failed to resolve billing scope",
			zap.String("payment_id", eventID),
			zap.String("account_id", accountID),
			zap.String("stage", "resolve"),
			zap.Error(err))
		return err
	}

	cents := money.FromFloat(payment.TransactionAmount)
	newBalance, err := s.ledger.Add(ctx, scope, cents)
	if err != nil {
		settlementEvents.WithLabelValues(kindTopUp, outcomeError).Inc()
		zap.L().Error("failed to credit top-up",
			zap.String("payment_id", eventID),
			zap.String("account_id", accountID),
			zap.String("stage", "credit"),
			zap.Int64("cents", cents),
			zap.Error(err))
		return err
	}

	settlementEvents.WithLabelValues(kindTopUp, outcomeSettled).Inc()
	zap.L().Info("top-up settled",
		zap.String("payment_id", eventID),
		zap.String("account_id", accountID),
		zap.Int64("cents", cents),
		zap.Int64("balance", newBalance))
	return nil
}

func (s *Processor) settlePurchase(ctx context.Context, eventID string, payment *Payment) error {
	p, err := s.purchases.FindByReference(ctx, payment.ExternalReference)
	if errors.Is(err, purchase.ErrNotFound) {
		settlementEvents.WithLabelValues(kindPurchase, outcomeIgnored).Inc()
		zap.L().Warn("payment references no known purchase",
			zap.String("payment_id", eventID),
			zap.String("reference", payment.ExternalReference))
		return nil
	}
	if err != nil {
		settlementEvents.WithLabelValues(kindPurchase, outcomeError).Inc()
		return err
	}

	status := mapStatus(payment.Status)
	if status == "" {
		settlementEvents.WithLabelValues(kindPurchase, outcomeIgnored).Inc()
		zap.L().Warn("unmapped provider status",
			zap.String("payment_id", eventID),
			zap.String("status", payment.Status))
		return nil
	}

	if status == "pending" {
		// Non-terminal. Record progress but leave the claim untaken: the
		// terminal notification arrives later under the same payment id and
		// must still be able to win it. The status write is idempotent.
		if _, err := s.purchases.UpdateStatus(ctx, p.Reference, status); err != nil {
			settlementEvents.WithLabelValues(kindPurchase, outcomeError).Inc()
			zap.L().Error("failed to update purchase status",
				zap.String("payment_id", eventID),
				zap.String("reference", p.Reference),
				zap.String("stage", "update"),
				zap.Error(err))
			return err
		}
		settlementEvents.WithLabelValues(kindPurchase, outcomeSettled).Inc()
		zap.L().Info("purchase pending, awaiting terminal status",
			zap.String("payment_id", eventID),
			zap.String("reference", p.Reference))
		return nil
	}

	won, err := s.gate.ClaimOnce(ctx, rediskey.BuildPaymentClaimKey(eventID), s.cfg.Dedup.ClaimTTL)
	if err != nil {
		settlementEvents.WithLabelValues(kindPurchase, outcomeError).Inc()
		zap.L().Error("dedup claim failed",
			zap.String("payment_id", eventID),
			zap.String("stage", "claim"),
			zap.Error(err))
		return err
	}
	if !won {
		settlementEvents.WithLabelValues(kindPurchase, outcomeDuplicate).Inc()
		zap.L().Info("duplicate purchase event, already settled",
			zap.String("payment_id", eventID))
		return nil
	}

	changed, err := s.purchases.UpdateStatus(ctx, p.Reference, status)
	if err != nil {
		settlementEvents.WithLabelValues(kindPurchase, outcomeError).Inc()
		zap.L().Error("failed to update purchase status",
			zap.String("payment_id", eventID),
			zap.String("reference", p.Reference),
			zap.String("stage", "update"),
			zap.Error(err))
		return err
	}

	if status == "paid" && changed {
		s.unlockPurchase(ctx, eventID, p, status)
	}

	settlementEvents.WithLabelValues(kindPurchase, outcomeSettled).Inc()
	zap.L().Info("purchase settled",
		zap.String("payment_id", eventID),
		zap.String("reference", p.Reference),
		zap.String("status", status))
	return nil
}

// unlockPurchase grants entitlements and queues the outbound product
// webhook. Failures here are logged, never propagated: the purchase is
// already settled and the grant itself is idempotent on retry paths.
func (s *Processor) unlockPurchase(ctx context.Context, eventID string, p *purchase.Purchase, status string) {
	product, err := s.purchases.ProductFor(ctx, p)
	if err != nil {
		zap.L().Error("failed to load product for paid purchase",
			zap.String("payment_id", eventID),
			zap.String("reference", p.Reference),
			zap.String("stage", "product"),
			zap.Error(err))
		return
	}

	tags, err := product.Tags()
	if err != nil {
		zap.L().Error("corrupt product tag set",
			zap.String("product_id", product.ID),
			zap.Error(err))
		return
	}

	if err := s.entitlements.Grant(ctx, p.AccountID, tags); err != nil {
		zap.L().Error("failed to grant entitlements",
			zap.String("payment_id", eventID),
			zap.String("account_id", p.AccountID),
			zap.String("stage", "grant"),
			zap.Error(err))
	}

	if s.enqueuer == nil || product.WebhookURL == "" {
		return
	}

	t, err := NewProductWebhookTask(ProductWebhookPayload{
		Reference: p.Reference,
		ProductID: product.ID,
		AccountID: p.AccountID,
		Status:    status,
		URL:       product.WebhookURL,
	})
	if err != nil {
		zap.L().Error("failed to build product webhook task", zap.Error(err))
		return
	}
	if _, err := s.enqueuer.Enqueue(t); err != nil {
		zap.L().Error("failed to enqueue product webhook",
			zap.String("reference", p.Reference),
			zap.Error(err))
	}
}
