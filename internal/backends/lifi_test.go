package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swap-backend/internal/clients"
	"swap-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lifiTestServer(t *testing.T, handler http.HandlerFunc) *LiFiAdapter {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := clients.NewLiFiClient(server.URL)
	return NewLiFiAdapter(client, clients.NewChainPool(), []uint64{1}, 5*time.Minute)
}

func lifiQuoteFixture() map[string]interface{} {
	return map[string]interface{}{
		"type": "lifi",
		"id":   "route-1",
		"tool": "1inch",
		"estimate": map[string]interface{}{
			"fromAmount":      "1000000",
			"toAmount":        "420000",
			"toAmountMin":     "417900",
			"approvalAddress": "0x7777777777777777777777777777777777777777",
		},
		"transactionRequest": map[string]interface{}{
			"to":      "0x6666666666666666666666666666666666666666",
			"data":    "0xcafebabe",
			"value":   "0x0",
			"gasLimit": "350000",
			"chainId": 1,
		},
	}
}

func TestLiFiGetQuote(t *testing.T) {
	adapter := lifiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("fromChain"))
		assert.Equal(t, "1", r.URL.Query().Get("toChain"))
		json.NewEncoder(w).Encode(lifiQuoteFixture())
	})

	quote, err := adapter.GetQuote(context.Background(), 1, uniswapTestRequest())
	require.NoError(t, err)
	assert.Equal(t, BackendLiFi, quote.BackendID)
	assert.Equal(t, "420000", quote.AmountOut.String())
	assert.Equal(t, "1inch", quote.RouteHint)
	assert.Equal(t, uint64(350000), quote.GasEstimate)

	payload, ok := quote.Payload.(models.LiFiPayload)
	require.True(t, ok)
	assert.Equal(t, "0x7777777777777777777777777777777777777777", payload.ApprovalAddress)
	require.NotEmpty(t, payload.Steps)
	assert.Equal(t, "0x6666666666666666666666666666666666666666", payload.Steps[0].To)

	spender, err := adapter.SpenderFor(1, quote)
	require.NoError(t, err)
	assert.Equal(t, payload.ApprovalAddress, spender)
}

func TestLiFiGetQuoteNoRoutes(t *testing.T) {
	adapter := lifiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"No available quotes for the requested transfer"}`))
	})

	_, err := adapter.GetQuote(context.Background(), 1, uniswapTestRequest())
	assert.Equal(t, models.ErrCodeNoLiquidity, models.CodeOf(err))
}

func TestLiFiGetQuoteRejectsExactOut(t *testing.T) {
	adapter := lifiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not reach upstream for an exact-out request")
	})
	req := uniswapTestRequest()
	req.Kind = models.SwapKindExactOut

	_, err := adapter.GetQuote(context.Background(), 1, req)
	assert.Equal(t, models.ErrCodeValidation, models.CodeOf(err))
}

func TestLiFiBuildCallParsesHexValue(t *testing.T) {
	adapter := lifiTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	quote := &models.Quote{
		Payload: models.LiFiPayload{
			Tool: "1inch",
			Steps: []models.LiFiStep{{
				To:    "0x6666666666666666666666666666666666666666",
				Data:  "0xcafebabe",
				Value: "0xff",
			}},
		},
	}

	call, err := adapter.BuildCall(context.Background(), 1, uniswapTestRequest(), quote)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe, 0xba, 0xbe}, call.Calldata)
	assert.Equal(t, "255", call.Value.String())
}

func TestLiFiBuildCallEmptySteps(t *testing.T) {
	adapter := lifiTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	quote := &models.Quote{Payload: models.LiFiPayload{}}

	_, err := adapter.BuildCall(context.Background(), 1, uniswapTestRequest(), quote)
	assert.Equal(t, models.ErrCodeInternal, models.CodeOf(err))
}
