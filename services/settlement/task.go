package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeProductWebhook = "settlement:product_webhook"

// ProductWebhookPayload is the outbound notification delivered to a
// product's webhook URL after its purchase settles as paid. Delivery is
// fire-and-forget from settlement's point of view; asynq owns retries.
type ProductWebhookPayload struct {
	Reference string `json:"reference"`
	ProductID string `json:"product_id"`
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
	URL       string `json:"url"`
}

func NewProductWebhookTask(p ProductWebhookPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProductWebhook, payload, asynq.MaxRetry(5), asynq.Queue("default")), nil
}

type webhookDeliverer struct {
	client *http.Client
}

func NewWebhookDeliverer() *webhookDeliverer {
	return &webhookDeliverer{client: &http.Client{Timeout: 15 * time.Second}}
}

func (d *webhookDeliverer) HandleProductWebhookTask(ctx context.Context, t *asynq.Task) error {
	var p ProductWebhookPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("malformed product webhook payload: %w: %w", asynq.SkipRetry, err)
	}
	if p.URL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"reference":  p.Reference,
		"product_id": p.ProductID,
		"account_id": p.AccountID,
		"status":     p.Status,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("product webhook delivery returned status %d", resp.StatusCode)
	}

	zap.L().Info("product webhook delivered",
		zap.String("reference", p.Reference),
		zap.String("url", p.URL))
	return nil
}

func RegisterTasks(mux *asynq.ServeMux, d *webhookDeliverer) {
	mux.HandleFunc(TypeProductWebhook, d.HandleProductWebhookTask)
}
