package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"creditledger/pkg/config"
	"creditledger/pkg/errutil"
	"creditledger/pkg/money"
	"creditledger/services/balance"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serviceTokenHeader = "X-Service-Token"

type Handler struct {
	svc      *Service
	resolver ScopeResolver
	tokens   TokenResolver
	cfg      *config.Config
}

type HandlerParams struct {
	fx.In
	Service  *Service
	Resolver ScopeResolver
	Tokens   TokenResolver `optional:"true"`
	Config   *config.Config
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		svc:      p.Service,
		resolver: p.Resolver,
		tokens:   p.Tokens,
		cfg:      p.Config,
	}
}

func RegisterRoutes(engine *gin.Engine, h *Handler) {
	credits := engine.Group("/credits")
	credits.POST("/charge", h.Charge)
	credits.GET("/balance", h.Balance)
	credits.POST("/balance", h.SetBalance)
}

type chargeRequest struct {
	UserID string      `json:"userId"`
	Cents  int64       `json:"cents"`
	Amount json.Number `json:"amount"`
}

type setBalanceRequest struct {
	UserID string `json:"userId"`
	OrgID  string `json:"orgId"`
	Cents  int64  `json:"cents"`
}

type balanceResponse struct {
	BalanceCents   int64  `json:"balanceCents"`
	BalanceDisplay string `json:"balanceDisplay"`
	Error          string `json:"error,omitempty"`
}

// authenticate identifies the caller: a trusted server-to-server caller via
// the shared secret header, or an end user via bearer token resolving to
// their own id.
func (h *Handler) authenticate(c *gin.Context) (string, bool, error) {
	if tok := c.GetHeader(serviceTokenHeader); tok != "" {
		if h.cfg.Auth.ServiceToken != "" && tok == h.cfg.Auth.ServiceToken {
			return "", true, nil
		}
		return "", false, errutil.Unauthorized("invalid service token", nil)
	}

	authz := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(authz, "Bearer ")
	if !found || token == "" {
		return "", false, errutil.Unauthorized("missing credentials", nil)
	}
	if h.tokens == nil {
		return "", false, errutil.Unauthorized("bearer authentication not configured", nil)
	}

	userID, err := h.tokens.Resolve(c.Request.Context(), token)
	if err != nil {
		return "", false, err
	}
	return userID, false, nil
}

func (h *Handler) Charge(c *gin.Context) {
	caller, trusted, err := h.authenticate(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, errutil.BadRequest("malformed charge request", err))
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = caller
	}
	if userID == "" {
		h.renderError(c, errutil.BadRequest("missing userId", nil))
		return
	}
	if !trusted && userID != caller {
		h.renderError(c, errutil.Forbidden("cannot charge another user", nil))
		return
	}

	cents := req.Cents
	if cents == 0 && req.Amount != "" {
		cents, err = money.ToMinorUnits(req.Amount.String())
		if err != nil {
			h.renderError(c, errutil.BadRequest("malformed amount", err))
			return
		}
	}

	scope, err := h.resolver.ResolveScope(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, errutil.Internal("failed to resolve billing scope", err))
		return
	}

	res, err := h.svc.ChargeWithValidation(c.Request.Context(), scope, cents)
	if err != nil {
		if errors.Is(err, balance.ErrStoreUnavailable) {
			c.JSON(http.StatusInternalServerError, balanceResponse{Error: "store_unavailable"})
			return
		}
		h.renderError(c, err)
		return
	}

	if !res.OK {
		c.JSON(http.StatusPaymentRequired, balanceResponse{
			BalanceCents:   res.BalanceCents,
			BalanceDisplay: money.FormatDisplay(res.BalanceCents),
			Error:          "insufficient_funds",
		})
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		BalanceCents:   res.BalanceCents,
		BalanceDisplay: money.FormatDisplay(res.BalanceCents),
	})
}

func (h *Handler) Balance(c *gin.Context) {
	caller, trusted, err := h.authenticate(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	var scope Scope
	switch {
	case trusted && c.Query("orgId") != "":
		scope = OrgScope(c.Query("orgId"))
	default:
		userID := c.Query("userId")
		if userID == "" {
			userID = caller
		}
		if userID == "" {
			h.renderError(c, errutil.BadRequest("missing userId", nil))
			return
		}
		if !trusted && userID != caller {
			h.renderError(c, errutil.Forbidden("cannot read another user's balance", nil))
			return
		}
		scope, err = h.resolver.ResolveScope(c.Request.Context(), userID)
		if err != nil {
			h.renderError(c, errutil.Internal("failed to resolve billing scope", err))
			return
		}
	}

	cents, err := h.svc.GetBalance(c.Request.Context(), scope)
	if err != nil {
		if errors.Is(err, balance.ErrStoreUnavailable) {
			c.JSON(http.StatusInternalServerError, balanceResponse{Error: "store_unavailable"})
			return
		}
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		BalanceCents:   cents,
		BalanceDisplay: money.FormatDisplay(cents),
	})
}

// SetBalance is the administrative correction endpoint; server-to-server
// callers only.
func (h *Handler) SetBalance(c *gin.Context) {
	_, trusted, err := h.authenticate(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !trusted {
		h.renderError(c, errutil.Forbidden("administrative endpoint", nil))
		return
	}

	var req setBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderError(c, errutil.BadRequest("malformed request", err))
		return
	}

	scope := Scope{UserID: req.UserID, OrgID: req.OrgID}
	if err := h.svc.SetBalance(c.Request.Context(), scope, req.Cents); err != nil {
		if errors.Is(err, balance.ErrStoreUnavailable) {
			c.JSON(http.StatusInternalServerError, balanceResponse{Error: "store_unavailable"})
			return
		}
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		BalanceCents:   req.Cents,
		BalanceDisplay: money.FormatDisplay(req.Cents),
	})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var be errutil.BaseError
	if errors.As(err, &be) {
		c.JSON(be.Code.HTTPStatus(), be)
		return
	}

	zap.L().Error("unclassified handler error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, errutil.BaseError{
		Code:    errutil.StatusInternal,
		Message: "internal error",
	})
}
