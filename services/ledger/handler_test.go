package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"creditledger/pkg/config"
	"creditledger/services/balance"
	"creditledger/services/testutil"
)

const testServiceToken = "s2s-secret"

type staticResolver struct{}

func (staticResolver) ResolveScope(_ context.Context, userID string) (Scope, error) {
	return UserScope(userID), nil
}

type staticTokens map[string]string

func (m staticTokens) Resolve(_ context.Context, token string) (string, error) {
	if uid, ok := m[token]; ok {
		return uid, nil
	}
	return "", errUnauthorizedToken
}

var errUnauthorizedToken = &unauthorizedErr{}

type unauthorizedErr struct{}

func (*unauthorizedErr) Error() string { return "invalid bearer token" }

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t, &balance.AccountBalance{})
	store := balance.NewGormStore(db)
	svc := &Service{store: store}

	cfg := &config.Config{}
	cfg.Auth.ServiceToken = testServiceToken

	h := &Handler{
		svc:      svc,
		resolver: staticResolver{},
		tokens:   staticTokens{"tok-alice": "alice"},
		cfg:      cfg,
	}

	engine := gin.New()
	RegisterRoutes(engine, h)
	return engine, svc
}

func doCharge(t *testing.T, engine *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/credits/charge", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChargeInsufficientFundsReturns402(t *testing.T) {
	engine, svc := newTestRouter(t)
	require.NoError(t, svc.SetBalance(context.Background(), UserScope("alice"), 500))

	w := doCharge(t, engine, `{"userId":"alice","cents":700}`,
		map[string]string{serviceTokenHeader: testServiceToken})

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(500), resp.BalanceCents)
	require.Equal(t, "5,00", resp.BalanceDisplay)
	require.Equal(t, "insufficient_funds", resp.Error)

	// balance unchanged
	bal, err := svc.GetBalance(context.Background(), UserScope("alice"))
	require.NoError(t, err)
	require.Equal(t, int64(500), bal)
}

func TestChargeSuccessReturnsNewBalance(t *testing.T) {
	engine, svc := newTestRouter(t)
	require.NoError(t, svc.SetBalance(context.Background(), UserScope("alice"), 500))

	w := doCharge(t, engine, `{"userId":"alice","cents":300}`,
		map[string]string{serviceTokenHeader: testServiceToken})

	require.Equal(t, http.StatusOK, w.Code)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(200), resp.BalanceCents)
	require.Equal(t, "2,00", resp.BalanceDisplay)
	require.Empty(t, resp.Error)
}

func TestChargeAcceptsDecimalAmount(t *testing.T) {
	engine, svc := newTestRouter(t)
	require.NoError(t, svc.SetBalance(context.Background(), UserScope("alice"), 500))

	w := doCharge(t, engine, `{"userId":"alice","amount":1.25}`,
		map[string]string{serviceTokenHeader: testServiceToken})

	require.Equal(t, http.StatusOK, w.Code)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(375), resp.BalanceCents)
}

func TestChargeBearerTokenOwnAccountOnly(t *testing.T) {
	engine, svc := newTestRouter(t)
	require.NoError(t, svc.SetBalance(context.Background(), UserScope("alice"), 500))

	// own account
	w := doCharge(t, engine, `{"userId":"alice","cents":100}`,
		map[string]string{"Authorization": "Bearer tok-alice"})
	require.Equal(t, http.StatusOK, w.Code)

	// someone else's account
	w = doCharge(t, engine, `{"userId":"bob","cents":100}`,
		map[string]string{"Authorization": "Bearer tok-alice"})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChargeRejectsMissingCredentials(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doCharge(t, engine, `{"userId":"alice","cents":100}`, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doCharge(t, engine, `{"userId":"alice","cents":100}`,
		map[string]string{serviceTokenHeader: "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetBalanceRequiresServiceToken(t *testing.T) {
	engine, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/credits/balance", strings.NewReader(`{"userId":"alice","cents":1000}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok-alice")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetBalance(t *testing.T) {
	engine, svc := newTestRouter(t)
	require.NoError(t, svc.SetBalance(context.Background(), UserScope("alice"), 1234))

	req := httptest.NewRequest(http.MethodGet, "/credits/balance?userId=alice", nil)
	req.Header.Set(serviceTokenHeader, testServiceToken)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(1234), resp.BalanceCents)
	require.Equal(t, "12,34", resp.BalanceDisplay)
}
