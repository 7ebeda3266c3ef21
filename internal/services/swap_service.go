package services

import (
	"context"
	"strings"
	"time"

	"swap-backend/internal/backends"
	"swap-backend/internal/cache"
	"swap-backend/internal/models"
	"swap-backend/internal/repository"

	"github.com/sirupsen/logrus"
)

// SwapService is the public facade: quote acquisition, payload composition
// for signing, and execution of signed payloads.
type SwapService struct {
	guard        *GuardService
	resolver     *QuoteResolver
	builder      *TransactionBuilder
	approvals    *ApprovalService
	multisig     *MultisigService
	execution    *ExecutionService
	registry     *backends.Registry
	repo         repository.SwapExecutionRepository
	payloadCache *cache.PayloadCache
}

// NewSwapService wires the facade
func NewSwapService(
	guard *GuardService,
	resolver *QuoteResolver,
	builder *TransactionBuilder,
	approvals *ApprovalService,
	multisig *MultisigService,
	execution *ExecutionService,
	registry *backends.Registry,
	repo repository.SwapExecutionRepository,
	payloadCache *cache.PayloadCache,
) *SwapService {
	return &SwapService{
		guard:        guard,
		resolver:     resolver,
		builder:      builder,
		approvals:    approvals,
		multisig:     multisig,
		execution:    execution,
		registry:     registry,
		repo:         repo,
		payloadCache: payloadCache,
	}
}

// QuoteResponse is a resolved quote plus which backend actually served it
type QuoteResponse struct {
	Quote              *models.Quote `json:"quote"`
	EffectiveBackendID string        `json:"effectiveBackendId"`
	FellBack           bool          `json:"fellBack"`
}

// validateWithAdapter runs the requested backend's own shape checks after
// the structural ones. A backend that cannot route the chain is left to the
// resolver's fallback instead of being reported as a validation failure.
func (s *SwapService) validateWithAdapter(ctx context.Context, backendID string, req *models.SwapRequest) error {
	adapter, err := s.registry.Get(backendID)
	if err != nil {
		return err
	}
	if !adapter.SupportsChain(req.ChainID) {
		return nil
	}
	if result := adapter.Validate(ctx, req.ChainID, req); !result.OK {
		return models.NewSwapError(models.ErrCodeValidation, "%s", strings.Join(result.Errors, "; "))
	}
	return nil
}

// GetQuote validates the request and prices it, with chain-driven fallback
func (s *SwapService) GetQuote(ctx context.Context, backendID string, req *models.SwapRequest) (*QuoteResponse, error) {
	if err := s.guard.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := s.validateWithAdapter(ctx, backendID, req); err != nil {
		return nil, err
	}
	resolved, err := s.resolver.Resolve(ctx, backendID, req)
	if err != nil {
		return nil, err
	}
	return &QuoteResponse{
		Quote:              resolved.Quote,
		EffectiveBackendID: resolved.EffectiveBackendID,
		FellBack:           resolved.FellBack,
	}, nil
}

// BuildResponse is the payload handed to the wallet owners for signing
type BuildResponse struct {
	ExecutionID   string             `json:"executionId"`
	Payload       *models.SafePayload `json:"payload"`
	Hash          string             `json:"hash"`
	NeedsApproval bool               `json:"needsApproval"`
	BackendID     string             `json:"backendId"`
	Quote         *models.Quote      `json:"quote,omitempty"`
}

// BuildForSigning runs the full composition pipeline: quote, executable
// call, approval detection, optional approval bundling, multisig payload
// and its canonical hash. The result is cached under the execution id and a
// PENDING ledger row is created. Retrying with the same id while the cached
// entry is live returns that entry unchanged; re-deriving would shift the
// quote deadline and invalidate signatures already collected over the first
// hash.
func (s *SwapService) BuildForSigning(ctx context.Context, executionID, backendID, safe string, req *models.SwapRequest) (*BuildResponse, error) {
	if executionID == "" {
		return nil, models.NewSwapError(models.ErrCodeValidation, "executionId is required")
	}

	if cached, ok, err := s.payloadCache.Get(ctx, executionID); err == nil && ok {
		if row, err := s.repo.Get(ctx, executionID); err == nil && row.Status.Terminal() {
			return nil, models.NewSwapError(models.ErrCodeValidation,
				"execution %s already finished as %s", executionID, row.Status)
		}
		logrus.WithFields(logrus.Fields{
			"execution_id": executionID,
			"hash":         cached.Hash,
		}).Info("Returning cached signed-for payload")
		return &BuildResponse{
			ExecutionID:   executionID,
			Payload:       &cached.Payload,
			Hash:          cached.Hash,
			NeedsApproval: cached.NeedsApproval,
			BackendID:     cached.BackendID,
		}, nil
	}
	if err := s.guard.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := s.validateWithAdapter(ctx, backendID, req); err != nil {
		return nil, err
	}
	if err := s.guard.CheckExecutionGuards(ctx, req.Wallet); err != nil {
		return nil, err
	}
	if safe == "" {
		safe = req.Wallet
	}

	resolved, err := s.resolver.Resolve(ctx, backendID, req)
	if err != nil {
		return nil, err
	}
	quote := resolved.Quote

	swapCall, err := s.builder.Build(ctx, req, quote)
	if err != nil {
		return nil, err
	}

	needsApproval, spender, err := s.approvals.NeedsApproval(ctx, safe, req, quote)
	if err != nil {
		return nil, err
	}

	if !needsApproval {
		// the allowance read can lag or lie for nonstandard tokens; a dry
		// run that fails in an allowance-shaped way overrides it
		adapter, err := s.registry.Get(quote.BackendID)
		if err != nil {
			return nil, err
		}
		sim, err := adapter.Simulate(ctx, quote.ChainID, swapCall, safe)
		if err != nil {
			return nil, err
		}
		if !sim.OK {
			if isAllowanceFailure(simError(sim.Reason)) {
				needsApproval = true
				if spender == "" {
					spender, err = adapter.SpenderFor(quote.ChainID, quote)
					if err != nil {
						return nil, err
					}
				}
			} else {
				return nil, models.NewSwapError(models.ErrCodeSimulationFailed, "swap simulation reverted: %s", sim.Reason)
			}
		}
	}

	var approvalCalls []models.PreparedCall
	if needsApproval {
		approvalCalls, err = s.approvals.BuildApprovalCalls(ctx, safe, spender, req, quote)
		if err != nil {
			return nil, err
		}
	}

	payload, err := s.multisig.Compose(ctx, safe, quote.ChainID, approvalCalls, swapCall)
	if err != nil {
		return nil, err
	}

	if err := s.payloadCache.Put(ctx, executionID, &cache.CachedPayload{
		Payload:       *payload,
		Hash:          payload.Hash,
		BackendID:     resolved.EffectiveBackendID,
		NeedsApproval: needsApproval,
		CreatedAt:     time.Now(),
	}); err != nil {
		return nil, models.WrapSwapError(models.ErrCodeStoreUnavailable, err, "failed to cache signed-for payload")
	}

	row := &models.SwapExecution{
		ID:          executionID,
		BackendID:   resolved.EffectiveBackendID,
		ChainID:     quote.ChainID,
		Wallet:      safe,
		FromToken:   req.FromToken,
		FromAmount:  req.FromAmount.String(),
		ToToken:     req.ToToken,
		ExpectedOut: quote.AmountOut.String(),
		Status:      models.ExecutionStatusPending,
	}
	stored, created, err := s.repo.Create(ctx, row)
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeStoreUnavailable, err, "failed to create execution ledger row")
	}
	if !created {
		if stored.Status.Terminal() {
			return nil, models.NewSwapError(models.ErrCodeValidation,
				"execution %s already finished as %s", executionID, stored.Status)
		}
		logrus.WithField("execution_id", executionID).Info("Reusing existing pending execution")
	}

	return &BuildResponse{
		ExecutionID:   executionID,
		Payload:       payload,
		Hash:          payload.Hash,
		NeedsApproval: needsApproval,
		BackendID:     resolved.EffectiveBackendID,
		Quote:         quote,
	}, nil
}

// ExecuteWithSignature finalizes a signed payload. The optional payload
// argument is the degraded path for an expired cache entry.
func (s *SwapService) ExecuteWithSignature(ctx context.Context, executionID, signaturesHex string, payload *models.SafePayload) (*ExecutionResult, error) {
	return s.execution.ExecuteWithSignature(ctx, executionID, signaturesHex, payload)
}

// ListExecutions returns a wallet's most recent executions
func (s *SwapService) ListExecutions(ctx context.Context, wallet string, limit int) ([]models.SwapExecution, error) {
	return s.execution.ListByWallet(ctx, wallet, limit)
}

// ReportClientSubmittedTransaction attaches a client-broadcast hash
func (s *SwapService) ReportClientSubmittedTransaction(ctx context.Context, executionID, txHash string) (*models.SwapExecution, error) {
	return s.execution.ReportClientSubmittedTransaction(ctx, executionID, txHash)
}

// GetExecution returns the ledger row
func (s *SwapService) GetExecution(ctx context.Context, executionID string) (*models.SwapExecution, error) {
	return s.execution.Get(ctx, executionID)
}

// simError adapts a simulation reason string to the allowance classifier
type simError string

func (e simError) Error() string { return string(e) }
