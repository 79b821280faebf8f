package rediskey

import "fmt"

// Key prefixes owned by the credit ledger core. Balances and payment claims
// are the only two pieces of state this service keeps in redis.
const (
	BalancePrefix      = "balance"
	PaymentClaimPrefix = "payment"
	AuthTokenPrefix    = "auth:token"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildBalanceKey returns "balance:{scopeKey}", e.g. "balance:org:42".
func BuildBalanceKey(scopeKey string) string {
	return NamespaceKey(BalancePrefix, scopeKey)
}

// BuildPaymentClaimKey returns "payment:{providerEventID}".
func BuildPaymentClaimKey(eventID string) string {
	return NamespaceKey(PaymentClaimPrefix, eventID)
}

// BuildAuthTokenKey returns "auth:token:{token}".
func BuildAuthTokenKey(token string) string {
	return NamespaceKey(AuthTokenPrefix, token)
}
