package settlement

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	processor *Processor
}

func NewHandler(processor *Processor) *Handler {
	return &Handler{processor: processor}
}

func RegisterRoutes(engine *gin.Engine, h *Handler) {
	engine.POST("/payments/webhook", h.Webhook)
	engine.GET("/payments/webhook", h.Ping)
}

// Webhook ingests a provider callback. The provider retries anything that
// is not a 2xx, and a retry storm helps nobody, so every parseable or not
// parseable body gets a 200; failures are logged and counted instead.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		zap.L().Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	evt, err := ParseWebhookEvent(body)
	if err != nil {
		zap.L().Warn("unparseable webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.processor.Process(c.Request.Context(), evt); err != nil {
		zap.L().Error("webhook processing failed",
			zap.String("payment_id", evt.PaymentID),
			zap.String("type", evt.Type),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Ping answers provider endpoint-verification probes.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
