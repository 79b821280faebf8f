package settlement

import (
	"encoding/json"
	"strings"
)

// WebhookEvent is the minimal shape we read from a provider callback. The
// provider sends two formats over time; both carry an event type and a
// payment id, nothing else from the callback body is trusted.
type WebhookEvent struct {
	Type      string
	PaymentID string
}

type webhookPayload struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	ID    string `json:"id"`
	Data  struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// ParseWebhookEvent decodes either callback format. The event type comes
// from "type" or the older "topic"; the payment id from "data.id" or the
// top-level "id".
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookEvent{}, err
	}

	evt := WebhookEvent{Type: p.Type}
	if evt.Type == "" {
		evt.Type = p.Topic
	}

	evt.PaymentID = p.Data.ID.String()
	if evt.PaymentID == "" {
		evt.PaymentID = p.ID
	}
	return evt, nil
}

// IsPayment reports whether the callback is a payment notification. Other
// event kinds (merchant orders, test pings) are acknowledged and dropped.
func (e WebhookEvent) IsPayment() bool {
	return e.Type == "payment" || strings.HasPrefix(e.Type, "payment.")
}

// Payment is the authoritative payment state fetched from the provider
// after a callback. Callbacks only tell us to look; this is what we act on.
type Payment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	TransactionAmount float64     `json:"transaction_amount"`
	ExternalReference string      `json:"external_reference"`
}

const topUpReferencePrefix = "credits_"

// ParseTopUpReference extracts the account id from a credit top-up
// reference of the form "credits_<accountID>_<timestamp>". Account ids may
// themselves contain underscores, so the timestamp is split off the tail.
func ParseTopUpReference(reference string) (accountID string, ok bool) {
	rest, found := strings.CutPrefix(reference, topUpReferencePrefix)
	if !found {
		return "", false
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// mapStatus translates provider payment statuses into purchase settlement
// statuses. Unknown statuses map to "" and are ignored.
func mapStatus(providerStatus string) string {
	switch providerStatus {
	case "approved":
		return "paid"
	case "pending", "in_process":
		return "pending"
	case "rejected":
		return "failed"
	case "cancelled":
		return "cancelled"
	case "refunded", "charged_back":
		return "refunded"
	default:
		return ""
	}
}
