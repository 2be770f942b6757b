package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SwapService submits a trade through the external swap aggregator. The
// aggregator is opaque: it quotes, routes, signs with the custodial key it
// custodies and submits, returning only the transaction signature.
type SwapService interface {
	Submit(ctx context.Context, req SwapRequest) (signature string, err error)
}

// SwapRequest describes one aggregator submission.
type SwapRequest struct {
	Wallet      string  `json:"wallet"`
	InputMint   string  `json:"inputMint"`
	OutputMint  string  `json:"outputMint"`
	Amount      float64 `json:"amount"`
	SlippageBps int     `json:"slippageBps"`
}

// HTTPSwapService implements SwapService over the aggregator's HTTP API.
type HTTPSwapService struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSwapService creates an aggregator client.
func NewHTTPSwapService(endpoint string) *HTTPSwapService {
	return &HTTPSwapService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit posts the swap request and returns the submitted signature.
func (s *HTTPSwapService) Submit(ctx context.Context, swapReq SwapRequest) (string, error) {
	body, err := json.Marshal(swapReq)
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/swap", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit swap: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap aggregator status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal swap response: %w", err)
	}
	if result.Signature == "" {
		return "", fmt.Errorf("swap aggregator returned no signature")
	}
	return result.Signature, nil
}

var _ SwapService = (*HTTPSwapService)(nil)
