package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// LiFiClient LiFi API client
type LiFiClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewLiFiClient creates a new LiFi client
func NewLiFiClient(baseURL string) *LiFiClient {
	if baseURL == "" {
		baseURL = "https://li.quest/v1"
	}
	return &LiFiClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// LiFiQuoteRequest represents LiFi quote request
type LiFiQuoteRequest struct {
	FromChain   string
	ToChain     string
	FromToken   string
	ToToken     string
	FromAmount  string
	FromAddress string
	ToAddress   string
	Slippage    float64 // fraction, e.g. 0.005
}

// LiFiTransactionRequest is the executable call of a route's first step
type LiFiTransactionRequest struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit string `json:"gasLimit"`
	ChainID  int    `json:"chainId"`
}

// LiFiToken represents a token
type LiFiToken struct {
	Address  string `json:"address"`
	ChainID  int    `json:"chainId"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
}

// LiFiIncludedStep one routed sub-step; for cross-chain routes only the
// first step's transaction executes on the source chain
type LiFiIncludedStep struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Tool   string `json:"tool"`
	Action struct {
		FromChainID int       `json:"fromChainId"`
		ToChainID   int       `json:"toChainId"`
		FromToken   LiFiToken `json:"fromToken"`
		ToToken     LiFiToken `json:"toToken"`
		FromAmount  string    `json:"fromAmount"`
	} `json:"action"`
}

// LiFiQuoteResponse represents LiFi quote response
type LiFiQuoteResponse struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Tool     string `json:"tool"`
	Estimate struct {
		Tool              string   `json:"tool"`
		FromAmount        string   `json:"fromAmount"`
		ToAmount          string   `json:"toAmount"`
		ToAmountMin       string   `json:"toAmountMin"`
		ApprovalAddress   string   `json:"approvalAddress"`
		ExecutionDuration int      `json:"executionDuration"` // seconds
		GasCosts          []struct {
			Type     string    `json:"type"`
			Amount   string    `json:"amount"`
			Estimate string    `json:"estimate"`
			Limit    string    `json:"limit"`
			Token    LiFiToken `json:"token"`
		} `json:"gasCosts"`
	} `json:"estimate"`
	IncludedSteps      []LiFiIncludedStep      `json:"includedSteps"`
	TransactionRequest *LiFiTransactionRequest `json:"transactionRequest,omitempty"`
}

// LiFiAPIError carries the HTTP status so the adapter can classify it
type LiFiAPIError struct {
	StatusCode int
	Body       string
}

func (e *LiFiAPIError) Error() string {
	return fmt.Sprintf("LiFi API error (status %d): %s", e.StatusCode, e.Body)
}

// GetQuote gets a quote from LiFi
func (c *LiFiClient) GetQuote(ctx context.Context, req *LiFiQuoteRequest) (*LiFiQuoteResponse, error) {
	params := url.Values{}
	params.Add("fromChain", req.FromChain)
	params.Add("toChain", req.ToChain)
	params.Add("fromToken", req.FromToken)
	params.Add("toToken", req.ToToken)
	params.Add("fromAmount", req.FromAmount)

	if req.FromAddress != "" {
		params.Add("fromAddress", req.FromAddress)
	}
	if req.ToAddress != "" {
		params.Add("toAddress", req.ToAddress)
	}
	if req.Slippage > 0 {
		params.Add("slippage", strconv.FormatFloat(req.Slippage, 'f', -1, 64))
	}

	reqURL := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &LiFiAPIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var quoteResp LiFiQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &quoteResp, nil
}
