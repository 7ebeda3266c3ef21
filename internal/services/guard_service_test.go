package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"swap-backend/internal/cache"
	"swap-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(limit int64, cooldown time.Duration) *GuardService {
	store := cache.NewMemoryStore()
	return NewGuardService(testConfig(),
		cache.NewRateLimiter(store, limit, time.Hour),
		cache.NewSpamGuard(store, cooldown),
	)
}

func validRequest() *models.SwapRequest {
	return &models.SwapRequest{
		ChainID:      1,
		FromToken:    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		FromDecimals: 6,
		ToToken:      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		ToDecimals:   18,
		Amount:       "25.5",
		Kind:         models.SwapKindExactIn,
		Wallet:       "0x1111111111111111111111111111111111111111",
		SlippageBps:  50,
	}
}

func TestValidateRequestNormalizesAmount(t *testing.T) {
	guard := newTestGuard(10, time.Second)
	req := validRequest()

	require.NoError(t, guard.ValidateRequest(req))
	assert.Equal(t, "25500000", req.FromAmount.String())
	// empty recipient defaults to the wallet
	assert.Equal(t, req.Wallet, req.Recipient)
}

func TestValidateRequestAccumulatesErrors(t *testing.T) {
	guard := newTestGuard(10, time.Second)
	req := &models.SwapRequest{
		ChainID:     999,          // not configured
		FromToken:   "not-hex",    // bad address
		ToToken:     "not-hex",    // bad address, also equal to fromToken
		Amount:      "abc",        // unparseable
		Kind:        "SOMETIMES",  // bad kind
		Wallet:      "also-bad",   // bad address
		SlippageBps: 10000,        // above ceiling
	}

	err := guard.ValidateRequest(req)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeValidation, models.CodeOf(err))

	// every defect is reported in one pass
	msg := err.Error()
	for _, want := range []string{"chain", "fromToken", "toToken", "wallet", "kind", "amount", "slippageBps"} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %q", want, msg)
	}
}

func TestValidateRequestMinimumAmount(t *testing.T) {
	guard := newTestGuard(10, time.Second)
	req := validRequest()
	req.Amount = "0.000500" // 500 base units, floor is 1000

	err := guard.ValidateRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minimum")
}

func TestValidateRequestRejectsSameToken(t *testing.T) {
	guard := newTestGuard(10, time.Second)
	req := validRequest()
	req.ToToken = strings.ToLower(req.FromToken) // case differences do not hide equality

	assert.Error(t, guard.ValidateRequest(req))
}

func TestCheckExecutionGuardsRateLimit(t *testing.T) {
	guard := newTestGuard(1, time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, guard.CheckExecutionGuards(ctx, "0xWallet"))

	err := guard.CheckExecutionGuards(ctx, "0xWallet")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeRateLimitExceeded, models.CodeOf(err))
}

func TestCheckExecutionGuardsSpamCooldown(t *testing.T) {
	guard := newTestGuard(100, time.Hour)
	ctx := context.Background()

	require.NoError(t, guard.CheckExecutionGuards(ctx, "0xWallet"))

	err := guard.CheckExecutionGuards(ctx, "0xWallet")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeSpamGuardActive, models.CodeOf(err))
}

func TestCheckExecutionGuardsWalletCaseInsensitive(t *testing.T) {
	guard := newTestGuard(1, time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, guard.CheckExecutionGuards(ctx, "0xABCDEF"))
	err := guard.CheckExecutionGuards(ctx, "0xabcdef")
	assert.Equal(t, models.ErrCodeRateLimitExceeded, models.CodeOf(err))
}
