package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenWallet moves raw token units between owners on behalf of the
// custodial key. Implementations create the destination token account when
// absent; account creation and transfer go out as one atomic submission.
type TokenWallet interface {
	Transfer(ctx context.Context, req TransferRequest) (signature string, err error)
}

// TransferRequest describes one token movement.
type TransferRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	TokenMint string `json:"tokenMint"`
	Amount    uint64 `json:"amount"` // raw units
}

// HTTPTokenWallet implements TokenWallet against the custodial signer
// service, the same service that backs swap submission.
type HTTPTokenWallet struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTokenWallet creates a signer-service client.
func NewHTTPTokenWallet(endpoint string) *HTTPTokenWallet {
	return &HTTPTokenWallet{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Transfer posts the transfer request and returns the submitted signature.
func (w *HTTPTokenWallet) Transfer(ctx context.Context, transferReq TransferRequest) (string, error) {
	body, err := json.Marshal(transferReq)
	if err != nil {
		return "", fmt.Errorf("marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint+"/transfer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transfer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signer service status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal transfer response: %w", err)
	}
	if result.Signature == "" {
		return "", fmt.Errorf("signer service returned no signature")
	}
	return result.Signature, nil
}

var _ TokenWallet = (*HTTPTokenWallet)(nil)
