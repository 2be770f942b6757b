package pnl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PriceSource provides the current price of a token in SOL.
type PriceSource interface {
	Price(ctx context.Context, mint string) (float64, error)
}

// HTTPPriceSource implements PriceSource against the external quote
// service.
type HTTPPriceSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPriceSource creates a quote-service client.
func NewHTTPPriceSource(endpoint string) *HTTPPriceSource {
	return &HTTPPriceSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Price fetches the current price for a mint.
func (s *HTTPPriceSource) Price(ctx context.Context, mint string) (float64, error) {
	u := fmt.Sprintf("%s/price?mint=%s", s.endpoint, url.QueryEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("create price request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read price response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote service status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("unmarshal price response: %w", err)
	}
	return result.Price, nil
}

var _ PriceSource = (*HTTPPriceSource)(nil)
