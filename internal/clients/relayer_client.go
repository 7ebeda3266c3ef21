package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RelayerClient submits pre-authorized multisig transactions through a
// gas-sponsoring relayer, so the caller needs no native gas currency.
type RelayerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayerClient creates a new relayer client
func NewRelayerClient(baseURL string) *RelayerClient {
	return &RelayerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RelayRequest represents a relay submission
type RelayRequest struct {
	RequestID string `json:"requestId"`
	ChainID   uint64 `json:"chainId"`
	To        string `json:"to"`
	Data      string `json:"data"`
	Value     string `json:"value"`
}

// RelayResponse represents the relayer's acknowledgement
type RelayResponse struct {
	TxHash string `json:"txHash"`
}

// Submit sends the transaction through the relayer and returns the
// broadcast transaction hash
func (c *RelayerClient) Submit(ctx context.Context, req *RelayRequest) (*RelayResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/relay", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("relayer error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var relayResp RelayResponse
	if err := json.NewDecoder(resp.Body).Decode(&relayResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &relayResp, nil
}
