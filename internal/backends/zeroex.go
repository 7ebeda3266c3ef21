package backends

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"swap-backend/internal/clients"
	"swap-backend/internal/models"
)

// BackendZeroEx backend identifier for the 0x-style aggregator
const BackendZeroEx = "zeroex"

// ZeroExAdapter routes through a 0x-style aggregator. The backend returns a
// ready-made direct router call; the spender is the allowanceTarget named in
// the quote payload.
type ZeroExAdapter struct {
	client   *clients.ZeroExClient
	pool     *clients.ChainPool
	chains   map[uint64]bool
	quoteTTL time.Duration
}

// NewZeroExAdapter creates the adapter for the given supported chains
func NewZeroExAdapter(client *clients.ZeroExClient, pool *clients.ChainPool, chains []uint64, quoteTTL time.Duration) *ZeroExAdapter {
	supported := make(map[uint64]bool, len(chains))
	for _, id := range chains {
		supported[id] = true
	}
	return &ZeroExAdapter{client: client, pool: pool, chains: supported, quoteTTL: quoteTTL}
}

func (a *ZeroExAdapter) ID() string {
	return BackendZeroEx
}

func (a *ZeroExAdapter) SupportsChain(chainID uint64) bool {
	return a.chains[chainID]
}

func (a *ZeroExAdapter) GetQuote(ctx context.Context, chainID uint64, req *models.SwapRequest) (*models.Quote, error) {
	if !a.SupportsChain(chainID) {
		return nil, models.NewSwapError(models.ErrCodeChainUnsupported, "zeroex does not support chain %d", chainID)
	}

	quoteReq := &clients.ZeroExQuoteRequest{
		ChainID:     chainID,
		SellToken:   req.FromToken,
		BuyToken:    req.ToToken,
		Taker:       req.Wallet,
		SlippageBps: req.SlippageBps,
	}
	if req.Kind == models.SwapKindExactOut {
		quoteReq.BuyAmount = req.FromAmount.String()
	} else {
		quoteReq.SellAmount = req.FromAmount.String()
	}

	resp, err := a.client.GetQuote(ctx, quoteReq)
	if err != nil {
		var apiErr *clients.ZeroExAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(apiErr.Body), "chain") {
			return nil, models.WrapSwapError(models.ErrCodeChainUnsupported, err, "zeroex rejected chain %d", chainID)
		}
		return nil, err
	}

	if !resp.LiquidityAvailable {
		return nil, models.NewSwapError(models.ErrCodeNoLiquidity, "zeroex has no liquidity for %s -> %s on chain %d",
			req.FromToken, req.ToToken, chainID)
	}

	amountIn, ok := new(big.Int).SetString(resp.SellAmount, 10)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeInternal, "zeroex returned malformed sellAmount %q", resp.SellAmount)
	}
	amountOut, ok := new(big.Int).SetString(resp.BuyAmount, 10)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeInternal, "zeroex returned malformed buyAmount %q", resp.BuyAmount)
	}

	var gas uint64
	if resp.Transaction.Gas != "" {
		if g, ok := new(big.Int).SetString(resp.Transaction.Gas, 10); ok {
			gas = g.Uint64()
		}
	}

	routeHint := ""
	if len(resp.Route.Fills) > 0 {
		routeHint = resp.Route.Fills[0].Source
	}

	allowanceTarget := resp.AllowanceTarget
	if allowanceTarget == "" && resp.Issues.Allowance != nil {
		allowanceTarget = resp.Issues.Allowance.Spender
	}

	return &models.Quote{
		BackendID:   BackendZeroEx,
		ChainID:     chainID,
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		RouteHint:   routeHint,
		GasEstimate: gas,
		ExpiresAt:   time.Now().Add(a.quoteTTL),
		Payload: models.ZeroExPayload{
			To:              resp.Transaction.To,
			Data:            resp.Transaction.Data,
			Value:           resp.Transaction.Value,
			AllowanceTarget: allowanceTarget,
			Gas:             gas,
		},
	}, nil
}

func (a *ZeroExAdapter) BuildCall(_ context.Context, _ uint64, _ *models.SwapRequest, quote *models.Quote) (*models.PreparedCall, error) {
	payload, ok := quote.Payload.(models.ZeroExPayload)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeInternal, "quote payload is not a zeroex payload")
	}

	calldata, err := hex.DecodeString(strings.TrimPrefix(payload.Data, "0x"))
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "zeroex calldata is not valid hex")
	}

	value := big.NewInt(0)
	if payload.Value != "" {
		if v, ok := new(big.Int).SetString(payload.Value, 10); ok {
			value = v
		}
	}

	return &models.PreparedCall{
		Target:   payload.To,
		Calldata: calldata,
		Value:    value,
	}, nil
}

func (a *ZeroExAdapter) Simulate(ctx context.Context, chainID uint64, call *models.PreparedCall, from string) (*SimulationResult, error) {
	return simulateOnChain(ctx, a.pool, chainID, call, from)
}

func (a *ZeroExAdapter) Validate(_ context.Context, chainID uint64, req *models.SwapRequest) *ValidationResult {
	errs := validateCommon(req)
	if !a.SupportsChain(chainID) {
		errs = append(errs, "chain not supported by zeroex")
	}
	return &ValidationResult{OK: len(errs) == 0, Errors: errs}
}

func (a *ZeroExAdapter) SpenderFor(_ uint64, quote *models.Quote) (string, error) {
	payload, ok := quote.Payload.(models.ZeroExPayload)
	if !ok {
		return "", models.NewSwapError(models.ErrCodeInternal, "quote payload is not a zeroex payload")
	}
	if payload.AllowanceTarget == "" {
		// no allowance issue reported; the router itself is the spender
		return payload.To, nil
	}
	return payload.AllowanceTarget, nil
}

// simulateOnChain is the shared eth_call-based simulation path
func simulateOnChain(ctx context.Context, pool *clients.ChainPool, chainID uint64, call *models.PreparedCall, from string) (*SimulationResult, error) {
	client, ok := pool.Get(chainID)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeChainUnsupported, "no chain client for chain %d", chainID)
	}

	if err := client.SimulateCall(ctx, from, call.Target, call.Calldata, call.Value); err != nil {
		return &SimulationResult{OK: false, Reason: err.Error()}, nil
	}

	gas, err := client.EstimateGas(ctx, from, call.Target, call.Calldata, call.Value)
	if err != nil {
		// call succeeded but estimation failed; report ok without a number
		return &SimulationResult{OK: true}, nil
	}
	return &SimulationResult{OK: true, GasEstimate: gas}, nil
}
