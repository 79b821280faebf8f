package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/fx"

	"creditledger/pkg/config"
)

// ErrUpstreamUnavailable reports that the payment provider could not be
// reached or answered outside 2xx. The event is acknowledged but not
// settled; the provider retries the callback later.
var ErrUpstreamUnavailable = errors.New("settlement: payment provider unavailable")

// ProviderClient fetches the authoritative state of a payment. The callback
// body is never trusted for amounts or statuses; only this is.
type ProviderClient interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type httpProvider struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

type ProviderParams struct {
	fx.In
	Config *config.Config
}

func NewHTTPProvider(p ProviderParams) ProviderClient {
	return &httpProvider{
		baseURL:     p.Config.Provider.BaseURL,
		accessToken: p.Config.Provider.AccessToken,
		client:      &http.Client{Timeout: p.Config.Provider.Timeout},
	}
}

func (c *httpProvider) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, body)
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%w: malformed payment body: %v", ErrUpstreamUnavailable, err)
	}
	return &payment, nil
}
