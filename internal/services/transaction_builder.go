package services

import (
	"context"
	"time"

	"swap-backend/internal/backends"
	"swap-backend/internal/models"
	"swap-backend/internal/utils"
)

// TransactionBuilder turns a priced quote into an executable call with the
// slippage bound baked in. Exact-input swaps get a floor on the output;
// exact-output swaps get a ceiling on the input. Rounding always favors the
// protection (floor rounds down, ceiling rounds up).
type TransactionBuilder struct {
	registry *backends.Registry
}

// NewTransactionBuilder creates the builder over the backend registry
func NewTransactionBuilder(registry *backends.Registry) *TransactionBuilder {
	return &TransactionBuilder{registry: registry}
}

// Build sets the quote's slippage bound and asks the quote's backend to
// encode the call. A quote past its validity window is rejected; its route
// and pricing can no longer be trusted.
func (b *TransactionBuilder) Build(ctx context.Context, req *models.SwapRequest, quote *models.Quote) (*models.PreparedCall, error) {
	if quote.Expired(time.Now()) {
		return nil, models.NewSwapError(models.ErrCodeValidation,
			"quote expired at %s; request a fresh quote", quote.ExpiresAt.Format(time.RFC3339))
	}

	adapter, err := b.registry.Get(quote.BackendID)
	if err != nil {
		return nil, err
	}

	if req.Kind == models.SwapKindExactOut {
		quote.MaxAmountIn = utils.ApplySlippageUp(quote.AmountIn, req.SlippageBps)
	} else {
		quote.MinAmountOut = utils.ApplySlippageDown(quote.AmountOut, req.SlippageBps)
	}

	return adapter.BuildCall(ctx, quote.ChainID, req, quote)
}
