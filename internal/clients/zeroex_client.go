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

// ZeroExClient 0x aggregator API client
type ZeroExClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewZeroExClient creates a new 0x client
func NewZeroExClient(baseURL, apiKey string) *ZeroExClient {
	if baseURL == "" {
		baseURL = "https://api.0x.org"
	}
	return &ZeroExClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ZeroExQuoteRequest represents a 0x quote request
type ZeroExQuoteRequest struct {
	ChainID     uint64
	SellToken   string
	BuyToken    string
	SellAmount  string // exact-in
	BuyAmount   string // exact-out
	Taker       string
	SlippageBps int64
}

// ZeroExQuoteResponse represents a 0x quote response
type ZeroExQuoteResponse struct {
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	SellAmount         string `json:"sellAmount"`
	BuyAmount          string `json:"buyAmount"`
	MinBuyAmount       string `json:"minBuyAmount"`
	Transaction        struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		Gas      string `json:"gas"`
		GasPrice string `json:"gasPrice"`
	} `json:"transaction"`
	Issues struct {
		Allowance *struct {
			Actual  string `json:"actual"`
			Spender string `json:"spender"`
		} `json:"allowance"`
	} `json:"issues"`
	AllowanceTarget string `json:"allowanceTarget"`
	Route           struct {
		Fills []struct {
			Source string `json:"source"`
		} `json:"fills"`
	} `json:"route"`
}

// ZeroExAPIError carries the HTTP status so the adapter can classify it
type ZeroExAPIError struct {
	StatusCode int
	Body       string
}

func (e *ZeroExAPIError) Error() string {
	return fmt.Sprintf("0x API error (status %d): %s", e.StatusCode, e.Body)
}

// GetQuote gets a firm quote from 0x
func (c *ZeroExClient) GetQuote(ctx context.Context, req *ZeroExQuoteRequest) (*ZeroExQuoteResponse, error) {
	params := url.Values{}
	params.Add("chainId", strconv.FormatUint(req.ChainID, 10))
	params.Add("sellToken", req.SellToken)
	params.Add("buyToken", req.BuyToken)
	if req.SellAmount != "" {
		params.Add("sellAmount", req.SellAmount)
	}
	if req.BuyAmount != "" {
		params.Add("buyAmount", req.BuyAmount)
	}
	if req.Taker != "" {
		params.Add("taker", req.Taker)
	}
	if req.SlippageBps > 0 {
		params.Add("slippageBps", strconv.FormatInt(req.SlippageBps, 10))
	}

	reqURL := fmt.Sprintf("%s/swap/allowance-holder/quote?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("0x-api-key", c.apiKey)
	httpReq.Header.Set("0x-version", "v2")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ZeroExAPIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var quoteResp ZeroExQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &quoteResp, nil
}
