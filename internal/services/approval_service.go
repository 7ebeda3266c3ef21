package services

import (
	"context"
	"math/big"
	"time"

	"swap-backend/internal/backends"
	"swap-backend/internal/clients"
	"swap-backend/internal/models"

	"github.com/sirupsen/logrus"
)

// ApprovalService decides whether a swap needs an allowance grant and
// builds the grant calls. The owner is always the multisig wallet, never
// the eventual recipient.
type ApprovalService struct {
	pool     *clients.ChainPool
	registry *backends.Registry
}

// NewApprovalService creates the approval service
func NewApprovalService(pool *clients.ChainPool, registry *backends.Registry) *ApprovalService {
	return &ApprovalService{pool: pool, registry: registry}
}

// NeedsApproval reads the current on-chain allowance from owner to the
// quote's spender and compares it to the required amount. Native-asset
// inputs never need approval.
func (s *ApprovalService) NeedsApproval(ctx context.Context, owner string, req *models.SwapRequest, quote *models.Quote) (bool, string, error) {
	if models.IsNativeAsset(req.FromToken) {
		return false, "", nil
	}

	adapter, err := s.registry.Get(quote.BackendID)
	if err != nil {
		return false, "", err
	}
	spender, err := adapter.SpenderFor(quote.ChainID, quote)
	if err != nil {
		return false, "", err
	}

	allowance, err := s.readAllowance(ctx, quote.ChainID, req.FromToken, owner, spender)
	if err != nil {
		return false, "", err
	}

	required := s.requiredAmount(req, quote)
	needed := allowance.Cmp(required) < 0
	if needed {
		logrus.WithFields(logrus.Fields{
			"token":     req.FromToken,
			"spender":   spender,
			"allowance": allowance.String(),
			"required":  required.String(),
		}).Debug("Approval required")
	}
	return needed, spender, nil
}

// BuildApprovalCalls returns the grant calls to bundle ahead of the swap.
// Most backends take a single ERC-20 approve for the required amount. The
// Permit2 path is two hops: an unbounded ERC-20 grant to the Permit2
// intermediary (skipped when already in place), then a capped, time-boxed
// grant from Permit2 to the router.
func (s *ApprovalService) BuildApprovalCalls(ctx context.Context, owner, spender string, req *models.SwapRequest, quote *models.Quote) ([]models.PreparedCall, error) {
	required := s.requiredAmount(req, quote)

	payload, isUniswap := quote.Payload.(models.UniswapPayload)
	if !isUniswap {
		return []models.PreparedCall{{
			Target:   req.FromToken,
			Calldata: clients.PackApprove(spender, required),
			Value:    big.NewInt(0),
		}}, nil
	}

	var calls []models.PreparedCall
	permit2Allowance, err := s.readAllowance(ctx, quote.ChainID, req.FromToken, owner, payload.Permit2)
	if err != nil {
		return nil, err
	}
	if permit2Allowance.Cmp(required) < 0 {
		calls = append(calls, models.PreparedCall{
			Target:   req.FromToken,
			Calldata: clients.PackApprove(payload.Permit2, clients.MaxUint256),
			Value:    big.NewInt(0),
		})
	}

	expiration := payload.Deadline
	if expiration == 0 {
		expiration = time.Now().Add(30 * time.Minute).Unix()
	}
	calls = append(calls, models.PreparedCall{
		Target:   payload.Permit2,
		Calldata: clients.PackPermit2Approve(req.FromToken, payload.Router, required, expiration),
		Value:    big.NewInt(0),
	})
	return calls, nil
}

// requiredAmount is what the spender may pull: the input amount, or the
// slippage-bounded ceiling for exact-output swaps.
func (s *ApprovalService) requiredAmount(req *models.SwapRequest, quote *models.Quote) *big.Int {
	if req.Kind == models.SwapKindExactOut && quote.MaxAmountIn != nil {
		return quote.MaxAmountIn
	}
	return req.FromAmount
}

func (s *ApprovalService) readAllowance(ctx context.Context, chainID uint64, token, owner, spender string) (*big.Int, error) {
	client, ok := s.pool.Get(chainID)
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeChainUnsupported, "no chain client for chain %d", chainID)
	}
	out, err := client.CallContract(ctx, token, clients.PackAllowance(owner, spender))
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "failed to read allowance for %s", token)
	}
	return clients.UnpackUint256(out)
}
