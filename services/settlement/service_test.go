package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"creditledger/pkg/config"
	"creditledger/services/ledger"
	"creditledger/services/purchase"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type providerMock struct {
	getFn func(ctx context.Context, paymentID string) (*Payment, error)
}

func (m *providerMock) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	return m.getFn(ctx, paymentID)
}

// memGate mirrors the redis claim gate for tests: first claim per key wins.
type memGate struct {
	mu     sync.Mutex
	claims map[string]struct{}
	err    error
}

func newMemGate() *memGate {
	return &memGate{claims: map[string]struct{}{}}
}

func (g *memGate) ClaimOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if _, ok := g.claims[key]; ok {
		return false, nil
	}
	g.claims[key] = struct{}{}
	return true, nil
}

type ledgerMock struct {
	addFn func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error)
}

func (m *ledgerMock) Add(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) {
	return m.addFn(ctx, scope, cents)
}

type resolverMock struct{}

func (resolverMock) ResolveScope(_ context.Context, userID string) (ledger.Scope, error) {
	return ledger.UserScope(userID), nil
}

type purchasesMock struct {
	findFn    func(ctx context.Context, reference string) (*purchase.Purchase, error)
	updateFn  func(ctx context.Context, reference, status string) (bool, error)
	productFn func(ctx context.Context, p *purchase.Purchase) (*purchase.Product, error)
}

func (m *purchasesMock) FindByReference(ctx context.Context, reference string) (*purchase.Purchase, error) {
	if m.findFn != nil {
		return m.findFn(ctx, reference)
	}
	return nil, purchase.ErrNotFound
}

func (m *purchasesMock) UpdateStatus(ctx context.Context, reference, status string) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, reference, status)
	}
	return false, nil
}

func (m *purchasesMock) ProductFor(ctx context.Context, p *purchase.Purchase) (*purchase.Product, error) {
	if m.productFn != nil {
		return m.productFn(ctx, p)
	}
	return nil, purchase.ErrNotFound
}

type granterMock struct {
	grantFn func(ctx context.Context, accountID string, tags []string) error
}

func (m *granterMock) Grant(ctx context.Context, accountID string, tags []string) error {
	if m.grantFn != nil {
		return m.grantFn(ctx, accountID, tags)
	}
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Dedup.ClaimTTL = 24 * time.Hour
	return cfg
}

func TestTopUpSettledOnceAcrossRetries(t *testing.T) {
	var credited int64
	var creditCalls int

	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				return &Payment{
					ID:                "133189349850",
					Status:            "approved",
					TransactionAmount: 0.50,
					ExternalReference: "credits_user42_1699999999",
				}, nil
			},
		},
		gate:     newMemGate(),
		resolver: resolverMock{},
		ledger: &ledgerMock{
			addFn: func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) {
				creditCalls++
				credited += cents
				return credited, nil
			},
		},
		purchases:    &purchasesMock{},
		entitlements: &granterMock{},
		cfg:          testConfig(),
	}

	evt := WebhookEvent{Type: "payment", PaymentID: "133189349850"}

	// Provider delivers the same event three times.
	require.NoError(t, proc.Process(context.Background(), evt))
	require.NoError(t, proc.Process(context.Background(), evt))
	require.NoError(t, proc.Process(context.Background(), evt))

	require.Equal(t, 1, creditCalls)
	require.Equal(t, int64(50), credited)
}

func TestPendingTopUpNeverMutatesOrClaims(t *testing.T) {
	var creditCalls int
	gate := newMemGate()

	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				return &Payment{
					Status:            "pending",
					TransactionAmount: 5.00,
					ExternalReference: "credits_user42_1699999999",
				}, nil
			},
		},
		gate:     gate,
		resolver: resolverMock{},
		ledger: &ledgerMock{
			addFn: func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) {
				creditCalls++
				return cents, nil
			},
		},
		purchases:    &purchasesMock{},
		entitlements: &granterMock{},
		cfg:          testConfig(),
	}

	evt := WebhookEvent{Type: "payment", PaymentID: "pay-1"}
	require.NoError(t, proc.Process(context.Background(), evt))

	require.Zero(t, creditCalls)
	require.Empty(t, gate.claims)
}

func TestFetchFailureDoesNotBurnClaim(t *testing.T) {
	gate := newMemGate()
	fetches := 0
	var credited int64

	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				fetches++
				if fetches == 1 {
					return nil, ErrUpstreamUnavailable
				}
				return &Payment{
					Status:            "approved",
					TransactionAmount: 10.00,
					ExternalReference: "credits_user42_1699999999",
				}, nil
			},
		},
		gate:     gate,
		resolver: resolverMock{},
		ledger: &ledgerMock{
			addFn: func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) {
				credited += cents
				return credited, nil
			},
		},
		purchases:    &purchasesMock{},
		entitlements: &granterMock{},
		cfg:          testConfig(),
	}

	evt := WebhookEvent{Type: "payment", PaymentID: "pay-1"}

	// First delivery: provider API down, event acknowledged but unclaimed.
	require.ErrorIs(t, proc.Process(context.Background(), evt), ErrUpstreamUnavailable)
	require.Empty(t, gate.claims)

	// Provider retry succeeds and settles.
	require.NoError(t, proc.Process(context.Background(), evt))
	require.Equal(t, int64(1000), credited)
}

func TestPaidPurchaseGrantsEntitlements(t *testing.T) {
	var grantedAccount string
	var grantedTags []string
	var updatedStatus string

	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				return &Payment{
					Status:            "approved",
					TransactionAmount: 9.90,
					ExternalReference: "order-77",
				}, nil
			},
		},
		gate:     newMemGate(),
		resolver: resolverMock{},
		ledger: &ledgerMock{addFn: func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) {
			t.Fatal("purchase settlement must not touch the credit ledger")
			return 0, nil
		}},
		purchases: &purchasesMock{
			findFn: func(ctx context.Context, reference string) (*purchase.Purchase, error) {
				return &purchase.Purchase{Reference: reference, AccountID: "acct-9", ProductID: "prod-1"}, nil
			},
			updateFn: func(ctx context.Context, reference, status string) (bool, error) {
				updatedStatus = status
				return true, nil
			},
			productFn: func(ctx context.Context, p *purchase.Purchase) (*purchase.Product, error) {
				return &purchase.Product{ID: "prod-1", AccessTags: []byte(`["premium"]`)}, nil
			},
		},
		entitlements: &granterMock{
			grantFn: func(ctx context.Context, accountID string, tags []string) error {
				grantedAccount = accountID
				grantedTags = tags
				return nil
			},
		},
		cfg: testConfig(),
	}

	evt := WebhookEvent{Type: "payment", PaymentID: "pay-9"}
	require.NoError(t, proc.Process(context.Background(), evt))

	require.Equal(t, "paid", updatedStatus)
	require.Equal(t, "acct-9", grantedAccount)
	require.Equal(t, []string{"premium"}, grantedTags)
}

func TestPendingThenApprovedPurchaseSettles(t *testing.T) {
	gate := newMemGate()
	providerStatus := "pending"
	var statuses []string
	grantCalls := 0

	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				return &Payment{Status: providerStatus, ExternalReference: "order-77"}, nil
			},
		},
		gate:     gate,
		resolver: resolverMock{},
		ledger:   &ledgerMock{addFn: func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) { return 0, nil }},
		purchases: &purchasesMock{
			findFn: func(ctx context.Context, reference string) (*purchase.Purchase, error) {
				return &purchase.Purchase{Reference: reference, AccountID: "acct-9", ProductID: "prod-1"}, nil
			},
			updateFn: func(ctx context.Context, reference, status string) (bool, error) {
				statuses = append(statuses, status)
				return true, nil
			},
			productFn: func(ctx context.Context, p *purchase.Purchase) (*purchase.Product, error) {
				return &purchase.Product{ID: "prod-1", AccessTags: []byte(`["premium"]`)}, nil
			},
		},
		entitlements: &granterMock{
			grantFn: func(ctx context.Context, accountID string, tags []string) error {
				grantCalls++
				return nil
			},
		},
		cfg: testConfig(),
	}

	evt := WebhookEvent{Type: "payment", PaymentID: "pay-9"}

	// First notification is non-terminal: status recorded, claim untaken.
	require.NoError(t, proc.Process(context.Background(), evt))
	require.Equal(t, []string{"pending"}, statuses)
	require.Zero(t, grantCalls)
	require.Empty(t, gate.claims)

	// Approval arrives later under the same payment id and must settle.
	providerStatus = "approved"
	require.NoError(t, proc.Process(context.Background(), evt))
	require.Equal(t, []string{"pending", "paid"}, statuses)
	require.Equal(t, 1, grantCalls)

	// A redelivery of the approval is a duplicate.
	require.NoError(t, proc.Process(context.Background(), evt))
	require.Equal(t, []string{"pending", "paid"}, statuses)
	require.Equal(t, 1, grantCalls)
}

func TestRejectedPurchaseUpdatesWithoutGrant(t *testing.T) {
	var updatedStatus string
	grantCalls := 0

	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				return &Payment{Status: "rejected", ExternalReference: "order-77"}, nil
			},
		},
		gate:     newMemGate(),
		resolver: resolverMock{},
		ledger:   &ledgerMock{addFn: func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) { return 0, nil }},
		purchases: &purchasesMock{
			findFn: func(ctx context.Context, reference string) (*purchase.Purchase, error) {
				return &purchase.Purchase{Reference: reference, AccountID: "acct-9", ProductID: "prod-1"}, nil
			},
			updateFn: func(ctx context.Context, reference, status string) (bool, error) {
				updatedStatus = status
				return true, nil
			},
		},
		entitlements: &granterMock{
			grantFn: func(ctx context.Context, accountID string, tags []string) error {
				grantCalls++
				return nil
			},
		},
		cfg: testConfig(),
	}

	evt := WebhookEvent{Type: "payment", PaymentID: "pay-9"}
	require.NoError(t, proc.Process(context.Background(), evt))

	require.Equal(t, "failed", updatedStatus)
	require.Zero(t, grantCalls)
}

func TestNonPaymentEventIgnored(t *testing.T) {
	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				t.Fatal("non-payment events must not hit the provider")
				return nil, nil
			},
		},
		cfg: testConfig(),
	}

	require.NoError(t, proc.Process(context.Background(), WebhookEvent{Type: "merchant_order", PaymentID: "x"}))
	require.NoError(t, proc.Process(context.Background(), WebhookEvent{Type: "payment"}))
}

func TestClaimErrorPropagates(t *testing.T) {
	gate := newMemGate()
	gate.err = errors.New("redis down")

	proc := &Processor{
		provider: &providerMock{
			getFn: func(ctx context.Context, paymentID string) (*Payment, error) {
				return &Payment{
					Status:            "approved",
					TransactionAmount: 1.00,
					ExternalReference: "credits_user42_1699999999",
				}, nil
			},
		},
		gate:     gate,
		resolver: resolverMock{},
		ledger: &ledgerMock{addFn: func(ctx context.Context, scope ledger.Scope, cents int64) (int64, error) {
			t.Fatal("must not credit when the claim cannot be taken")
			return 0, nil
		}},
		purchases:    &purchasesMock{},
		entitlements: &granterMock{},
		cfg:          testConfig(),
	}

	err := proc.Process(context.Background(), WebhookEvent{Type: "payment", PaymentID: "pay-1"})
	require.Error(t, err)
}
