package ledger

import (
	"context"

	"creditledger/pkg/errutil"
	"creditledger/services/balance"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service is the only component allowed to mutate balances. It is stateless
// and safe to replicate horizontally; all same-key atomicity lives in the
// balance store.
type Service struct {
	store balance.Store
}

type ServiceParams struct {
	fx.In
	Store balance.Store
}

func NewService(p ServiceParams) *Service {
	return &Service{store: p.Store}
}

// GetBalance returns the scope's balance in cents. Store errors propagate;
// zero is only ever a confirmed empty balance.
func (s *Service) GetBalance(ctx context.Context, scope Scope) (int64, error) {
	if !scope.Valid() {
		return 0, errutil.BadRequest("missing account scope", nil)
	}
	return s.store.Get(ctx, scope.Key())
}

// SetBalance administratively overwrites the balance, including corrections
// of a previously over-debited account.
func (s *Service) SetBalance(ctx context.Context, scope Scope, cents int64) error {
	if !scope.Valid() {
		return errutil.BadRequest("missing account scope", nil)
	}
	return s.store.Set(ctx, scope.Key(), cents)
}

// Add credits the scope and returns the new balance. Used for top-ups.
func (s *Service) Add(ctx context.Context, scope Scope, cents int64) (int64, error) {
	span := trace.SpanFromContext(ctx)
	traceID := span.SpanContext().TraceID().String()

	if !scope.Valid() {
		return 0, errutil.BadRequest("missing account scope", nil)
	}
	if cents <= 0 {
		return 0, errutil.BadRequest("amount must be > 0 for credit", nil)
	}

	newBalance, err := s.store.AtomicAdd(ctx, scope.Key(), cents)
	if err != nil {
		zap.L().Error("failed to credit balance",
			zap.String("trace_id", traceID),
			zap.String("scope", scope.Key()),
			zap.Int64("cents", cents),
			zap.Error(err))
		return 0, err
	}

	zap.L().Info("balance credited",
		zap.String("scope", scope.Key()),
		zap.Int64("cents", cents),
		zap.Int64("balance", newBalance))
	return newBalance, nil
}

// Charge is the raw decrement retained for legacy call sites. It can drive a
// balance negative; new spend paths must use ChargeWithValidation.
func (s *Service) Charge(ctx context.Context, scope Scope, cents int64) (int64, error) {
	if !scope.Valid() {
		return 0, errutil.BadRequest("missing account scope", nil)
	}
	return s.store.AtomicAdd(ctx, scope.Key(), -cents)
}

// ChargeWithValidation debits the scope only when the balance covers the
// amount. The floor check and the decrement run as one atomic backend
// operation, so concurrent spenders cannot overdraw the account.
func (s *Service) ChargeWithValidation(ctx context.Context, scope Scope, cents int64) (ChargeResult, error) {
	span := trace.SpanFromContext(ctx)
	traceID := span.SpanContext().TraceID().String()

	if !scope.Valid() {
		return ChargeResult{}, errutil.BadRequest("missing account scope", nil)
	}
	if cents <= 0 {
		return ChargeResult{}, errutil.BadRequest("amount must be > 0 for charge", nil)
	}

	ok, newBalance, err := s.store.ChargeIfSufficient(ctx, scope.Key(), cents)
	if err != nil {
		zap.L().Error("failed to charge balance",
			zap.String("trace_id", traceID),
			zap.String("scope", scope.Key()),
			zap.Int64("cents", cents),
			zap.Error(err))
		return ChargeResult{}, err
	}

	if !ok {
		zap.L().Warn("charge declined, insufficient funds",
			zap.String("scope", scope.Key()),
			zap.Int64("cents", cents),
			zap.Int64("balance", newBalance))
	}

	return ChargeResult{OK: ok, BalanceCents: newBalance}, nil
}
