package backends

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"swap-backend/internal/clients"
	"swap-backend/internal/models"
)

// BackendLiFi backend identifier for the LiFi routing aggregator
const BackendLiFi = "lifi"

// LiFiAdapter routes swaps through the LiFi aggregator. Same-chain swaps
// produce a single-step route; cross-chain routes carry a step sequence of
// which only the first step executes locally as a prepared call.
type LiFiAdapter struct {
	client   *clients.LiFiClient
	pool     *clients.ChainPool
	chains   map[uint64]bool
	quoteTTL time.Duration
}

// NewLiFiAdapter creates the adapter for the given supported chain set
func NewLiFiAdapter(client *clients.LiFiClient, pool *clients.ChainPool, chainIDs []uint64, quoteTTL time.Duration) *LiFiAdapter {
	chains := make(map[uint64]bool, len(chainIDs))
	for _, id := range chainIDs {
		chains[id] = true
	}
	return &LiFiAdapter{client: client, pool: pool, chains: chains, quoteTTL: quoteTTL}
}

func (a *LiFiAdapter) ID() string {
	return BackendLiFi
}

func (a *LiFiAdapter) SupportsChain(chainID uint64) bool {
	return a.chains[chainID]
}

func (a *LiFiAdapter) GetQuote(ctx context.Context, chainID uint64, req *models.SwapRequest) (*models.Quote, error) {
	if !a.SupportsChain(chainID) {
		return nil, models.NewSwapError(models.ErrCodeChainUnsupported, "lifi is not configured for chain %d", chainID)
	}
	if req.Kind == models.SwapKindExactOut {
		// routed aggregation only prices from a fixed input amount
		return nil, models.NewSwapError(models.ErrCodeValidation, "lifi does not support exact-output swaps")
	}

	chain := strconv.FormatUint(chainID, 10)
	resp, err := a.client.GetQuote(ctx, &clients.LiFiQuoteRequest{
		FromChain:   chain,
		ToChain:     chain,
		FromToken:   req.FromToken,
		ToToken:     req.ToToken,
		FromAmount:  req.FromAmount.String(),
		FromAddress: req.Wallet,
		ToAddress:   req.Recipient,
		Slippage:    float64(req.SlippageBps) / 10000,
	})
	if err != nil {
		var apiErr *clients.LiFiAPIError
		if errors.As(err, &apiErr) {
			body := strings.ToLower(apiErr.Body)
			switch {
			case apiErr.StatusCode == http.StatusNotFound,
				strings.Contains(body, "no available quotes"),
				strings.Contains(body, "no routes"):
				return nil, models.WrapSwapError(models.ErrCodeNoLiquidity, err, "lifi found no route for %s -> %s", req.FromToken, req.ToToken)
			case apiErr.StatusCode == http.StatusBadRequest && strings.Contains(body, "chain"):
				return nil, models.WrapSwapError(models.ErrCodeChainUnsupported, err, "lifi rejected chain %d", chainID)
			}
		}
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "lifi quote request failed")
	}
	if resp.TransactionRequest == nil {
		return nil, models.NewSwapError(models.ErrCodeNoLiquidity, "lifi route has no executable transaction")
	}

	amountIn, ok := new(big.Int).SetString(resp.Estimate.FromAmount, 10)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeInternal, "lifi returned invalid fromAmount: %s", resp.Estimate.FromAmount)
	}
	amountOut, ok := new(big.Int).SetString(resp.Estimate.ToAmount, 10)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeInternal, "lifi returned invalid toAmount: %s", resp.Estimate.ToAmount)
	}

	steps := make([]models.LiFiStep, 0, len(resp.IncludedSteps)+1)
	steps = append(steps, models.LiFiStep{
		Tool:  resp.Tool,
		Type:  resp.Type,
		To:    resp.TransactionRequest.To,
		Data:  resp.TransactionRequest.Data,
		Value: resp.TransactionRequest.Value,
	})
	for _, s := range resp.IncludedSteps {
		steps = append(steps, models.LiFiStep{
			Tool:   s.Tool,
			Type:   s.Type,
			Target: s.Action.ToToken.Address,
		})
	}

	quote := &models.Quote{
		BackendID: BackendLiFi,
		ChainID:   chainID,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		RouteHint: resp.Tool,
		ExpiresAt: time.Now().Add(a.quoteTTL),
		Payload: models.LiFiPayload{
			Tool:            resp.Tool,
			ApprovalAddress: resp.Estimate.ApprovalAddress,
			Steps:           steps,
		},
	}
	if g, ok := new(big.Int).SetString(resp.TransactionRequest.GasLimit, 10); ok {
		quote.GasEstimate = g.Uint64()
	}
	return quote, nil
}

// BuildCall returns the first step of the route; downstream steps run on the
// destination side and are LiFi's responsibility.
func (a *LiFiAdapter) BuildCall(_ context.Context, _ uint64, _ *models.SwapRequest, quote *models.Quote) (*models.PreparedCall, error) {
	payload, ok := quote.Payload.(models.LiFiPayload)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeInternal, "quote payload is not a lifi payload")
	}
	if len(payload.Steps) == 0 {
		return nil, models.NewSwapError(models.ErrCodeInternal, "lifi payload has no steps")
	}

	first := payload.Steps[0]
	data, err := hex.DecodeString(strings.TrimPrefix(first.Data, "0x"))
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "lifi step calldata is not valid hex")
	}
	value := big.NewInt(0)
	if first.Value != "" {
		raw, base := first.Value, 10
		if strings.HasPrefix(raw, "0x") {
			raw, base = raw[2:], 16
		}
		parsed, ok := new(big.Int).SetString(raw, base)
		if !ok {
			return nil, models.NewSwapError(models.ErrCodeInternal, "lifi step value is not a valid number: %s", first.Value)
		}
		value = parsed
	}

	return &models.PreparedCall{
		Target:   first.To,
		Calldata: data,
		Value:    value,
	}, nil
}

func (a *LiFiAdapter) Simulate(ctx context.Context, chainID uint64, call *models.PreparedCall, from string) (*SimulationResult, error) {
	return simulateOnChain(ctx, a.pool, chainID, call, from)
}

func (a *LiFiAdapter) Validate(_ context.Context, chainID uint64, req *models.SwapRequest) *ValidationResult {
	errs := validateCommon(req)
	if !a.SupportsChain(chainID) {
		errs = append(errs, "chain not supported by lifi")
	}
	if req.Kind == models.SwapKindExactOut {
		errs = append(errs, "lifi does not support exact-output swaps")
	}
	return &ValidationResult{OK: len(errs) == 0, Errors: errs}
}

// SpenderFor returns the route's designated approval address
func (a *LiFiAdapter) SpenderFor(_ uint64, quote *models.Quote) (string, error) {
	payload, ok := quote.Payload.(models.LiFiPayload)
	if !ok {
		return "", models.NewSwapError(models.ErrCodeInternal, "quote payload is not a lifi payload")
	}
	if payload.ApprovalAddress == "" && len(payload.Steps) > 0 {
		return payload.Steps[0].To, nil
	}
	return payload.ApprovalAddress, nil
}
