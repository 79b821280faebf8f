package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var settlementEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "creditledger",
		Subsystem: "settlement",
		Name:      "events_total",
		Help:      "Webhook events by classification and outcome.",
	},
	[]string{"kind", "outcome"},
)

const (
	kindTopUp    = "topup"
	kindPurchase = "purchase"
	kindOther    = "other"

	outcomeSettled     = "settled"
	outcomeDuplicate   = "duplicate"
	outcomeIgnored     = "ignored"
	outcomeError       = "error"
	outcomeUnavailable = "upstream_unavailable"
)
