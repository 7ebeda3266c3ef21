package services

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"swap-backend/internal/backends"
	"swap-backend/internal/clients"
	"swap-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPermit2 = "0x5555555555555555555555555555555555555555"

func allowanceClient(allowance *big.Int) *fakeChainClient {
	return &fakeChainClient{
		chainID: 1,
		callFn: func(to string, data []byte) ([]byte, error) {
			return common.BigToHash(allowance).Bytes(), nil
		},
	}
}

func approvalFixture(allowance *big.Int, spender string) (*ApprovalService, *models.SwapRequest, *models.Quote) {
	adapter := &scriptedAdapter{id: "a", chains: map[uint64]bool{1: true}, spender: spender}
	svc := NewApprovalService(clients.NewChainPool(allowanceClient(allowance)), backends.NewRegistry(adapter))

	req := &models.SwapRequest{
		ChainID:    1,
		FromToken:  testToken,
		ToToken:    "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		FromAmount: big.NewInt(1000000),
		Kind:       models.SwapKindExactIn,
		Wallet:     testSafe,
	}
	quote := scriptedQuote("a", 420000)
	return svc, req, quote
}

func TestNeedsApprovalNativeAsset(t *testing.T) {
	svc, req, quote := approvalFixture(big.NewInt(0), testRouter)
	req.FromToken = models.NativeTokenAddress

	needed, _, err := svc.NeedsApproval(context.Background(), testSafe, req, quote)
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestNeedsApprovalSufficientAllowance(t *testing.T) {
	svc, req, quote := approvalFixture(big.NewInt(1000000), testRouter)

	needed, _, err := svc.NeedsApproval(context.Background(), testSafe, req, quote)
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestNeedsApprovalInsufficientAllowance(t *testing.T) {
	svc, req, quote := approvalFixture(big.NewInt(999999), testRouter)

	needed, spender, err := svc.NeedsApproval(context.Background(), testSafe, req, quote)
	require.NoError(t, err)
	assert.True(t, needed)
	assert.Equal(t, testRouter, spender)
}

func TestNeedsApprovalExactOutUsesCeiling(t *testing.T) {
	svc, req, quote := approvalFixture(big.NewInt(1000000), testRouter)
	req.Kind = models.SwapKindExactOut
	quote.MaxAmountIn = big.NewInt(1000001)

	needed, _, err := svc.NeedsApproval(context.Background(), testSafe, req, quote)
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestBuildApprovalCallsPlainERC20(t *testing.T) {
	svc, req, quote := approvalFixture(big.NewInt(0), testRouter)

	calls, err := svc.BuildApprovalCalls(context.Background(), testSafe, testRouter, req, quote)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, testToken, calls[0].Target)
	assert.Equal(t, clients.PackApprove(testRouter, big.NewInt(1000000)), calls[0].Calldata)
}

func TestBuildApprovalCallsPermit2TwoHop(t *testing.T) {
	svc, req, _ := approvalFixture(big.NewInt(0), testPermit2)
	quote := &models.Quote{
		BackendID: "a",
		ChainID:   1,
		AmountIn:  big.NewInt(1000000),
		AmountOut: big.NewInt(420000),
		Payload: models.UniswapPayload{
			FeeTier:  3000,
			Router:   testRouter,
			Permit2:  testPermit2,
			Deadline: 1900000000,
		},
	}

	calls, err := svc.BuildApprovalCalls(context.Background(), testSafe, testPermit2, req, quote)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	// hop one: unbounded ERC-20 grant to the intermediary
	assert.Equal(t, testToken, calls[0].Target)
	assert.Equal(t, clients.PackApprove(testPermit2, clients.MaxUint256), calls[0].Calldata)

	// hop two: capped, time-boxed grant from the intermediary to the router
	assert.Equal(t, testPermit2, calls[1].Target)
	assert.True(t, bytes.Contains(calls[1].Calldata, common.HexToAddress(testRouter).Bytes()))
}

func TestBuildApprovalCallsPermit2SkipsGrantedHop(t *testing.T) {
	// the intermediary already holds an unbounded grant
	svc, req, _ := approvalFixture(clients.MaxUint256, testPermit2)
	quote := &models.Quote{
		BackendID: "a",
		ChainID:   1,
		AmountIn:  big.NewInt(1000000),
		AmountOut: big.NewInt(420000),
		Payload: models.UniswapPayload{
			Router:   testRouter,
			Permit2:  testPermit2,
			Deadline: 1900000000,
		},
	}

	calls, err := svc.BuildApprovalCalls(context.Background(), testSafe, testPermit2, req, quote)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, testPermit2, calls[0].Target)
}
