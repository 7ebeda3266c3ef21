package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"swap-backend/internal/backends"
	"swap-backend/internal/cache"
	"swap-backend/internal/clients"
	"swap-backend/internal/events"
	"swap-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type swapFixture struct {
	svc     *SwapService
	adapter *scriptedAdapter
	client  *fakeChainClient
	cache   *cache.PayloadCache
	repo    *memoryRepository
}

// newSwapFixture wires the full facade over fakes. allowance scripts the
// ERC-20 allowance read; the wallet nonce read always answers 3.
func newSwapFixture(t *testing.T, allowance *big.Int) *swapFixture {
	t.Helper()
	cfg := testConfig()

	client := &fakeChainClient{chainID: 1}
	client.callFn = func(to string, data []byte) ([]byte, error) {
		if len(data) == 4 {
			// nonce()
			return common.BigToHash(big.NewInt(3)).Bytes(), nil
		}
		return common.BigToHash(allowance).Bytes(), nil
	}
	pool := clients.NewChainPool(client)

	adapter := &scriptedAdapter{
		id:      "zeroex",
		chains:  map[uint64]bool{1: true},
		quote:   scriptedQuote("zeroex", 420000),
		call:    &models.PreparedCall{Target: testRouter, Calldata: []byte{0xde, 0xad}, Value: big.NewInt(0)},
		spender: testRouter,
		simOK:   true,
	}
	registry := backends.NewRegistry(adapter)

	store := cache.NewMemoryStore()
	repo := newMemoryRepository()
	payloadCache := cache.NewPayloadCache(store, time.Minute)
	guard := NewGuardService(cfg,
		cache.NewRateLimiter(store, cfg.Swap.RateLimitPerHour, time.Hour),
		cache.NewSpamGuard(store, time.Nanosecond),
	)
	execution := NewExecutionService(cfg, pool, registry, repo, payloadCache, events.NoopPublisher{})

	svc := NewSwapService(
		guard,
		NewQuoteResolver(registry),
		NewTransactionBuilder(registry),
		NewApprovalService(pool, registry),
		NewMultisigService(pool, cfg),
		execution,
		registry,
		repo,
		payloadCache,
	)
	return &swapFixture{svc: svc, adapter: adapter, client: client, cache: payloadCache, repo: repo}
}

func TestGetQuoteValidatesFirst(t *testing.T) {
	f := newSwapFixture(t, big.NewInt(0))

	_, err := f.svc.GetQuote(context.Background(), "zeroex", &models.SwapRequest{})
	assert.Equal(t, models.ErrCodeValidation, models.CodeOf(err))
	assert.Zero(t, f.adapter.calls)
}

func TestGetQuoteHappyPath(t *testing.T) {
	f := newSwapFixture(t, big.NewInt(0))

	resp, err := f.svc.GetQuote(context.Background(), "zeroex", validRequest())
	require.NoError(t, err)
	assert.Equal(t, "zeroex", resp.EffectiveBackendID)
	assert.Equal(t, "420000", resp.Quote.AmountOut.String())
}

func TestGetQuoteRunsBackendShapeChecks(t *testing.T) {
	f := newSwapFixture(t, big.NewInt(0))
	f.adapter.badShapes = []string{"exact-output swaps are not supported"}

	_, err := f.svc.GetQuote(context.Background(), "zeroex", validRequest())
	assert.Equal(t, models.ErrCodeValidation, models.CodeOf(err))
	assert.Contains(t, err.Error(), "exact-output")
	assert.Zero(t, f.adapter.calls)
}

func TestBuildForSigningRunsBackendShapeChecks(t *testing.T) {
	f := newSwapFixture(t, big.NewInt(0))
	f.adapter.badShapes = []string{"exact-output swaps are not supported"}

	_, err := f.svc.BuildForSigning(context.Background(), "exec-1", "zeroex", testSafe, validRequest())
	assert.Equal(t, models.ErrCodeValidation, models.CodeOf(err))

	// rejected before any quote, cache, or ledger work
	_, ok, cacheErr := f.cache.Get(context.Background(), "exec-1")
	require.NoError(t, cacheErr)
	assert.False(t, ok)
}

func TestBuildForSigningWithoutApproval(t *testing.T) {
	f := newSwapFixture(t, new(big.Int).Lsh(big.NewInt(1), 128)) // ample allowance

	resp, err := f.svc.BuildForSigning(context.Background(), "exec-1", "zeroex", testSafe, validRequest())
	require.NoError(t, err)
	assert.False(t, resp.NeedsApproval)
	assert.Equal(t, models.SafeOperationCall, resp.Payload.Operation)
	assert.Equal(t, testRouter, resp.Payload.Target)
	assert.Equal(t, uint64(3), resp.Payload.Nonce)
	assert.NotEmpty(t, resp.Hash)
	// the slippage floor was applied before building
	assert.NotNil(t, resp.Quote.MinAmountOut)

	// payload cached under the execution id
	cached, ok, err := f.cache.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resp.Hash, cached.Hash)

	// PENDING ledger row opened
	row, err := f.repo.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, row.Status)
	assert.Equal(t, "zeroex", row.BackendID)
}

func TestBuildForSigningBundlesApproval(t *testing.T) {
	f := newSwapFixture(t, big.NewInt(0))

	resp, err := f.svc.BuildForSigning(context.Background(), "exec-1", "zeroex", testSafe, validRequest())
	require.NoError(t, err)
	assert.True(t, resp.NeedsApproval)
	// bundled approvals ride a delegated multi-call
	assert.Equal(t, models.SafeOperationDelegateCall, resp.Payload.Operation)
	assert.Equal(t, testMultiSnd, resp.Payload.Target)
}

func TestBuildForSigningAllowanceShapedSimFailureForcesApproval(t *testing.T) {
	f := newSwapFixture(t, new(big.Int).Lsh(big.NewInt(1), 128))
	f.adapter.simOK = false
	f.adapter.simWhy = "execution reverted: transfer amount exceeds allowance"

	resp, err := f.svc.BuildForSigning(context.Background(), "exec-1", "zeroex", testSafe, validRequest())
	require.NoError(t, err)
	assert.True(t, resp.NeedsApproval)
	assert.Equal(t, models.SafeOperationDelegateCall, resp.Payload.Operation)
}

func TestBuildForSigningOtherSimFailureAborts(t *testing.T) {
	f := newSwapFixture(t, new(big.Int).Lsh(big.NewInt(1), 128))
	f.adapter.simOK = false
	f.adapter.simWhy = "execution reverted: STF"

	_, err := f.svc.BuildForSigning(context.Background(), "exec-1", "zeroex", testSafe, validRequest())
	assert.Equal(t, models.ErrCodeSimulationFailed, models.CodeOf(err))
}

func TestBuildForSigningIdempotentExecutionID(t *testing.T) {
	f := newSwapFixture(t, new(big.Int).Lsh(big.NewInt(1), 128))
	ctx := context.Background()

	first, err := f.svc.BuildForSigning(ctx, "exec-1", "zeroex", testSafe, validRequest())
	require.NoError(t, err)
	quotesAfterFirst := f.adapter.calls

	// shift what a rebuild would produce, the way a recomputed deadline
	// shifts real adapter calldata between builds
	f.adapter.call = &models.PreparedCall{Target: testRouter, Calldata: []byte{0xbe, 0xef}, Value: big.NewInt(0)}

	second, err := f.svc.BuildForSigning(ctx, "exec-1", "zeroex", testSafe, validRequest())
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Payload.Calldata, second.Payload.Calldata)
	// the live cache entry short-circuits the pipeline entirely
	assert.Equal(t, quotesAfterFirst, f.adapter.calls)

	// the entry signatures may already cover is untouched
	cached, ok, err := f.cache.Get(ctx, "exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Hash, cached.Hash)
	assert.Equal(t, first.Payload.Calldata, cached.Payload.Calldata)

	// still one pending row
	row, err := f.repo.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, row.Status)
}

func TestBuildForSigningRejectsFinishedExecution(t *testing.T) {
	f := newSwapFixture(t, new(big.Int).Lsh(big.NewInt(1), 128))
	ctx := context.Background()

	_, err := f.svc.BuildForSigning(ctx, "exec-1", "zeroex", testSafe, validRequest())
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateStatus(ctx, "exec-1", models.ExecutionStatusPending, models.ExecutionStatusSuccess, nil))

	_, err = f.svc.BuildForSigning(ctx, "exec-1", "zeroex", testSafe, validRequest())
	assert.Equal(t, models.ErrCodeValidation, models.CodeOf(err))
}

func TestBuildForSigningRequiresExecutionID(t *testing.T) {
	f := newSwapFixture(t, big.NewInt(0))

	_, err := f.svc.BuildForSigning(context.Background(), "", "zeroex", testSafe, validRequest())
	assert.Equal(t, models.ErrCodeValidation, models.CodeOf(err))
}

func TestBuildThenExecuteRoundTrip(t *testing.T) {
	f := newSwapFixture(t, new(big.Int).Lsh(big.NewInt(1), 128))
	ctx := context.Background()

	_, err := f.svc.BuildForSigning(ctx, "exec-1", "zeroex", testSafe, validRequest())
	require.NoError(t, err)

	// no relayer configured: execution hands back the wallet call
	result, err := f.svc.ExecuteWithSignature(ctx, "exec-1", "0x"+"ab", nil)
	require.NoError(t, err)
	assert.False(t, result.Relayed)
	assert.NotEmpty(t, result.Calldata)
}
