package services

import (
	"context"
	"math/big"
	"strings"

	"swap-backend/internal/cache"
	"swap-backend/internal/config"
	"swap-backend/internal/metrics"
	"swap-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// GuardService validates incoming swap requests before any backend work.
// Structural problems are accumulated so the caller sees every defect at
// once; the stateful guards (rate limit, spam cooldown) fail OPEN when the
// store is unreachable, because refusing all swaps during a cache outage is
// worse than briefly admitting a few extra.
type GuardService struct {
	cfg         *config.Config
	rateLimiter *cache.RateLimiter
	spamGuard   *cache.SpamGuard
	minAmount   *big.Int
}

// NewGuardService creates the guard. minAmountBaseUnits comes from config;
// an unparseable value falls back to zero (no floor).
func NewGuardService(cfg *config.Config, rateLimiter *cache.RateLimiter, spamGuard *cache.SpamGuard) *GuardService {
	minAmount := big.NewInt(0)
	if cfg.Swap.MinAmountBaseUnits != "" {
		if parsed, ok := new(big.Int).SetString(cfg.Swap.MinAmountBaseUnits, 10); ok {
			minAmount = parsed
		} else {
			logrus.WithField("value", cfg.Swap.MinAmountBaseUnits).Warn("Invalid minAmountBaseUnits in config, using 0")
		}
	}
	return &GuardService{cfg: cfg, rateLimiter: rateLimiter, spamGuard: spamGuard, minAmount: minAmount}
}

func validAddress(s string) bool {
	return common.IsHexAddress(s) || models.IsNativeAsset(s)
}

// ValidateRequest runs the structural checks and normalizes the amount into
// req.FromAmount. It does not touch the stateful guards.
func (g *GuardService) ValidateRequest(req *models.SwapRequest) error {
	var errs []string

	network, err := g.cfg.GetNetworkByChainID(req.ChainID)
	if err != nil || !network.Enabled {
		errs = append(errs, "chain is not enabled")
	}

	if !validAddress(req.FromToken) {
		errs = append(errs, "fromToken is not a valid address")
	}
	if !validAddress(req.ToToken) {
		errs = append(errs, "toToken is not a valid address")
	}
	if strings.EqualFold(req.FromToken, req.ToToken) {
		errs = append(errs, "fromToken and toToken must differ")
	}
	if !common.IsHexAddress(req.Wallet) {
		errs = append(errs, "wallet is not a valid address")
	}
	if req.Recipient == "" {
		req.Recipient = req.Wallet
	} else if !common.IsHexAddress(req.Recipient) {
		errs = append(errs, "recipient is not a valid address")
	}

	if req.Kind != models.SwapKindExactIn && req.Kind != models.SwapKindExactOut {
		errs = append(errs, "kind must be EXACT_IN or EXACT_OUT")
	}

	amount, err := models.ParseTokenAmount(req.FromToken, req.FromDecimals, req.Amount)
	if err != nil {
		errs = append(errs, "amount is not a valid token amount: "+err.Error())
	} else if amount.Amount.Sign() <= 0 {
		errs = append(errs, "amount must be positive")
	} else if amount.Amount.Cmp(g.minAmount) < 0 {
		errs = append(errs, "amount is below the minimum")
	} else {
		req.FromAmount = amount.Amount
	}

	if req.SlippageBps <= 0 || req.SlippageBps > g.cfg.Swap.MaxSlippageBps {
		errs = append(errs, "slippageBps is out of range")
	}

	if len(errs) > 0 {
		return models.NewSwapError(models.ErrCodeValidation, "%s", strings.Join(errs, "; "))
	}
	return nil
}

// CheckExecutionGuards applies the per-wallet rate limit and spam cooldown.
// Only called on the execution path; quoting is not throttled.
func (g *GuardService) CheckExecutionGuards(ctx context.Context, wallet string) error {
	wallet = strings.ToLower(wallet)

	allowed, err := g.rateLimiter.Allow(ctx, wallet)
	if err != nil {
		metrics.GuardStoreDegradations.Inc()
		logrus.WithError(err).WithField("wallet", wallet).Warn("Rate limit store unavailable, failing open")
	} else if !allowed {
		metrics.RateLimitRejections.Inc()
		return models.NewSwapError(models.ErrCodeRateLimitExceeded, "wallet %s exceeded the execution rate limit", wallet)
	}

	allowed, err = g.spamGuard.Allow(ctx, wallet)
	if err != nil {
		metrics.GuardStoreDegradations.Inc()
		logrus.WithError(err).WithField("wallet", wallet).Warn("Spam guard store unavailable, failing open")
	} else if !allowed {
		metrics.SpamGuardRejections.Inc()
		return models.NewSwapError(models.ErrCodeSpamGuardActive, "wallet %s must wait before the next execution", wallet)
	}

	return nil
}
