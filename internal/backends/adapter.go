package backends

import (
	"context"
	"fmt"
	"math/big"

	"swap-backend/internal/models"
)

// SimulationResult outcome of a pre-flight call simulation
type SimulationResult struct {
	OK          bool
	GasEstimate uint64
	Reason      string
}

// ValidationResult accumulated request-shape errors from an adapter
type ValidationResult struct {
	OK     bool
	Errors []string
}

// Adapter is the uniform interface over one liquidity-routing backend.
// Implementations translate their backend's quirks (call shape, spender
// rule, error vocabulary) into the shared types; orchestration code never
// sees backend-specific detail outside the tagged quote payload.
type Adapter interface {
	// ID returns the stable backend identifier
	ID() string

	// SupportsChain reports whether the backend can route on this chain
	SupportsChain(chainID uint64) bool

	// GetQuote prices the request. Must return ErrCodeChainUnsupported for
	// chains it cannot route (drives registry fallback) and ErrCodeNoLiquidity
	// when it cannot price the pair (fatal, never retried elsewhere).
	GetQuote(ctx context.Context, chainID uint64, req *models.SwapRequest) (*models.Quote, error)

	// BuildCall turns a quote from this backend into a concrete invocation
	BuildCall(ctx context.Context, chainID uint64, req *models.SwapRequest, quote *models.Quote) (*models.PreparedCall, error)

	// Simulate dry-runs the call as the given sender
	Simulate(ctx context.Context, chainID uint64, call *models.PreparedCall, from string) (*SimulationResult, error)

	// Validate checks request shape without any network side effects beyond reads
	Validate(ctx context.Context, chainID uint64, req *models.SwapRequest) *ValidationResult

	// SpenderFor resolves the address that must hold the ERC-20 allowance
	// for this quote's swap call
	SpenderFor(chainID uint64, quote *models.Quote) (string, error)
}

// validateCommon accumulates the request-shape checks every backend shares
func validateCommon(req *models.SwapRequest) []string {
	var errs []string
	if req.FromToken == "" {
		errs = append(errs, "fromToken is required")
	}
	if req.ToToken == "" {
		errs = append(errs, "toToken is required")
	}
	if req.FromAmount == nil || req.FromAmount.Sign() <= 0 {
		errs = append(errs, "amount must be positive")
	}
	if req.Wallet == "" {
		errs = append(errs, "wallet is required")
	}
	if req.Kind != models.SwapKindExactIn && req.Kind != models.SwapKindExactOut {
		errs = append(errs, fmt.Sprintf("unsupported swap kind: %s", req.Kind))
	}
	return errs
}

// Registry holds adapters keyed by identifier, preserving registration
// order for fallback enumeration. Immutable after construction; pass it by
// reference instead of reaching for a package global.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

// NewRegistry creates a registry from adapters in registration order
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if _, exists := r.adapters[adapter.ID()]; exists {
			continue
		}
		r.adapters[adapter.ID()] = adapter
		r.order = append(r.order, adapter.ID())
	}
	return r
}

// Get returns the adapter with the given id
func (r *Registry) Get(id string) (Adapter, error) {
	adapter, ok := r.adapters[id]
	if !ok {
		return nil, models.NewSwapError(models.ErrCodeBackendNotFound, "unknown backend: %s", id)
	}
	return adapter, nil
}

// Supporting returns the adapters that support the chain, in registration order
func (r *Registry) Supporting(chainID uint64) []Adapter {
	var supporting []Adapter
	for _, id := range r.order {
		if adapter := r.adapters[id]; adapter.SupportsChain(chainID) {
			supporting = append(supporting, adapter)
		}
	}
	return supporting
}

// IDs returns all registered backend ids in registration order
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// selectBest picks the winning candidate among quoted alternatives:
// exact-input takes the greatest output, exact-output the least input,
// ties broken by first-seen order.
func selectBest(kind models.SwapKind, current, candidate *big.Int) bool {
	if current == nil {
		return true
	}
	if kind == models.SwapKindExactIn {
		return candidate.Cmp(current) > 0
	}
	return candidate.Cmp(current) < 0
}
