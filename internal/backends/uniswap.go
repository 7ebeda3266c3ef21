package backends

import (
	"context"
	"math/big"
	"time"

	"swap-backend/internal/clients"
	"swap-backend/internal/models"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BackendUniswap backend identifier for the on-chain Uniswap router
const BackendUniswap = "uniswap"

// candidate fee tiers enumerated when quoting, in hundredths of a bip
var uniswapFeeTiers = []uint32{500, 3000, 10000}

// v4-style router action codes for the ordered action list
const (
	actionSwapExactInSingle  = 0x06
	actionSwapExactOutSingle = 0x08
	actionSettleAll          = 0x0c
	actionTakeAll            = 0x0f
)

// UniswapContracts the per-chain contract addresses the adapter needs
type UniswapContracts struct {
	Router  string
	Quoter  string
	Permit2 string
}

// UniswapAdapter prices swaps on-chain via the quoter across candidate fee
// tiers and builds a v4-style action-list call (swap, settle, take as
// ordered sub-actions within one router call). Approvals use the Permit2
// two-hop scheme, so the spender is always the Permit2 intermediary.
type UniswapAdapter struct {
	pool      *clients.ChainPool
	contracts map[uint64]UniswapContracts
	quoteTTL  time.Duration
}

// NewUniswapAdapter creates the adapter for chains with configured contracts
func NewUniswapAdapter(pool *clients.ChainPool, contracts map[uint64]UniswapContracts, quoteTTL time.Duration) *UniswapAdapter {
	return &UniswapAdapter{pool: pool, contracts: contracts, quoteTTL: quoteTTL}
}

func (a *UniswapAdapter) ID() string {
	return BackendUniswap
}

func (a *UniswapAdapter) SupportsChain(chainID uint64) bool {
	_, ok := a.contracts[chainID]
	return ok
}

var (
	uniAddressType = mustAbiType("address")
	uniUint24Type  = mustAbiType("uint24")
	uniUint256Type = mustAbiType("uint256")
	uniUint160Type = mustAbiType("uint160")
	uniBytesType   = mustAbiType("bytes")
	uniBytesSlice  = mustAbiType("bytes[]")

	quoteExactInSelector  = crypto.Keccak256([]byte("quoteExactInputSingle(address,address,uint24,uint256,uint160)"))[:4]
	quoteExactOutSelector = crypto.Keccak256([]byte("quoteExactOutputSingle(address,address,uint24,uint256,uint160)"))[:4]
	executeSelector       = crypto.Keccak256([]byte("execute(bytes,bytes[],uint256)"))[:4]
)

func mustAbiType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("invalid abi type " + t + ": " + err.Error())
	}
	return typ
}

// quoteTier asks the quoter for one fee tier. Exact-in returns amount out;
// exact-out returns amount in.
func (a *UniswapAdapter) quoteTier(ctx context.Context, client clients.ChainClient, quoter string, req *models.SwapRequest, tier uint32) (*big.Int, error) {
	args := abi.Arguments{
		{Type: uniAddressType},
		{Type: uniAddressType},
		{Type: uniUint24Type},
		{Type: uniUint256Type},
		{Type: uniUint160Type},
	}

	selector := quoteExactInSelector
	if req.Kind == models.SwapKindExactOut {
		selector = quoteExactOutSelector
	}

	packed, err := args.Pack(
		common.HexToAddress(req.FromToken),
		common.HexToAddress(req.ToToken),
		big.NewInt(int64(tier)),
		req.FromAmount,
		big.NewInt(0), // no price limit
	)
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "failed to pack quoter call")
	}

	out, err := client.CallContract(ctx, quoter, append(append([]byte{}, selector...), packed...))
	if err != nil {
		// a tier without a pool reverts; treat as "no result for this tier"
		return nil, nil
	}
	return clients.UnpackUint256(out)
}

func (a *UniswapAdapter) GetQuote(ctx context.Context, chainID uint64, req *models.SwapRequest) (*models.Quote, error) {
	contracts, ok := a.contracts[chainID]
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeChainUnsupported, "uniswap is not configured for chain %d", chainID)
	}
	client, ok := a.pool.Get(chainID)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeChainUnsupported, "no chain client for chain %d", chainID)
	}

	var best *big.Int
	var bestTier uint32
	for _, tier := range uniswapFeeTiers {
		quoted, err := a.quoteTier(ctx, client, contracts.Quoter, req, tier)
		if err != nil {
			return nil, err
		}
		if quoted == nil || quoted.Sign() == 0 {
			continue
		}
		if selectBest(req.Kind, best, quoted) {
			best = quoted
			bestTier = tier
		}
	}

	if best == nil {
		return nil, models.NewSwapError(models.ErrCodeNoLiquidity, "no uniswap pool quotes %s -> %s on chain %d",
			req.FromToken, req.ToToken, chainID)
	}

	amountIn, amountOut := req.FromAmount, best
	if req.Kind == models.SwapKindExactOut {
		amountIn, amountOut = best, req.FromAmount
	}

	deadline := time.Now().Add(a.quoteTTL)
	return &models.Quote{
		BackendID: BackendUniswap,
		ChainID:   chainID,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		RouteHint: "uniswap-v3-pool",
		ExpiresAt: deadline,
		Payload: models.UniswapPayload{
			FeeTier:  bestTier,
			Router:   contracts.Router,
			Quoter:   contracts.Quoter,
			Permit2:  contracts.Permit2,
			Deadline: deadline.Unix(),
		},
	}, nil
}

// BuildCall encodes the router's ordered action list: the swap action, a
// settle of the input currency, then a take of the output currency. All
// three execute atomically inside one router call.
func (a *UniswapAdapter) BuildCall(_ context.Context, _ uint64, req *models.SwapRequest, quote *models.Quote) (*models.PreparedCall, error) {
	payload, ok := quote.Payload.(models.UniswapPayload)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeInternal, "quote payload is not a uniswap payload")
	}

	swapAction := byte(actionSwapExactInSingle)
	limit := quote.MinAmountOut
	if req.Kind == models.SwapKindExactOut {
		swapAction = byte(actionSwapExactOutSingle)
		limit = quote.MaxAmountIn
	}
	if limit == nil {
		return nil, models.NewSwapError(models.ErrCodeInternal, "quote is missing its slippage bound; build must run after the bound is set")
	}

	swapArgs := abi.Arguments{
		{Type: uniAddressType}, // tokenIn
		{Type: uniAddressType}, // tokenOut
		{Type: uniUint24Type},  // fee
		{Type: uniUint256Type}, // amount
		{Type: uniUint256Type}, // amount limit
		{Type: uniAddressType}, // recipient
	}
	swapParams, err := swapArgs.Pack(
		common.HexToAddress(req.FromToken),
		common.HexToAddress(req.ToToken),
		big.NewInt(int64(payload.FeeTier)),
		req.FromAmount,
		limit,
		common.HexToAddress(req.Recipient),
	)
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "failed to pack swap action")
	}

	settleArgs := abi.Arguments{{Type: uniAddressType}, {Type: uniUint256Type}}
	settleParams, err := settleArgs.Pack(common.HexToAddress(req.FromToken), req.FromAmount)
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "failed to pack settle action")
	}
	takeParams, err := settleArgs.Pack(common.HexToAddress(req.ToToken), big.NewInt(0))
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "failed to pack take action")
	}

	actions := []byte{swapAction, actionSettleAll, actionTakeAll}
	executeArgs := abi.Arguments{
		{Type: uniBytesType},
		{Type: uniBytesSlice},
		{Type: uniUint256Type},
	}
	packed, err := executeArgs.Pack(actions, [][]byte{swapParams, settleParams, takeParams}, big.NewInt(payload.Deadline))
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "failed to pack router execute call")
	}

	value := big.NewInt(0)
	if models.IsNativeAsset(req.FromToken) {
		value = new(big.Int).Set(req.FromAmount)
	}

	return &models.PreparedCall{
		Target:   payload.Router,
		Calldata: append(append([]byte{}, executeSelector...), packed...),
		Value:    value,
	}, nil
}

func (a *UniswapAdapter) Simulate(ctx context.Context, chainID uint64, call *models.PreparedCall, from string) (*SimulationResult, error) {
	return simulateOnChain(ctx, a.pool, chainID, call, from)
}

func (a *UniswapAdapter) Validate(_ context.Context, chainID uint64, req *models.SwapRequest) *ValidationResult {
	errs := validateCommon(req)
	if !a.SupportsChain(chainID) {
		errs = append(errs, "chain not supported by uniswap")
	}
	if models.IsNativeAsset(req.FromToken) && models.IsNativeAsset(req.ToToken) {
		errs = append(errs, "cannot swap native asset for itself")
	}
	return &ValidationResult{OK: len(errs) == 0, Errors: errs}
}

// SpenderFor returns the Permit2 intermediary: the wallet approves Permit2
// once (unbounded) and the composer separately instructs Permit2 to grant
// the router a capped, time-boxed allowance.
func (a *UniswapAdapter) SpenderFor(chainID uint64, _ *models.Quote) (string, error) {
	contracts, ok := a.contracts[chainID]
	if !ok {
		return "", models.NewSwapError(models.ErrCodeChainUnsupported, "uniswap is not configured for chain %d", chainID)
	}
	return contracts.Permit2, nil
}
