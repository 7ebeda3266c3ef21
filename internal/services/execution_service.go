package services

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"swap-backend/internal/backends"
	"swap-backend/internal/cache"
	"swap-backend/internal/clients"
	"swap-backend/internal/config"
	"swap-backend/internal/events"
	"swap-backend/internal/metrics"
	"swap-backend/internal/models"
	"swap-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ExecutionService drives the ledger state machine for signed payloads:
// PENDING -> RUNNING while the transaction is in flight, then SUCCESS or
// FAILED from the receipt. Networks with a relayer submit through it; the
// rest return the wallet call to the client and learn the hash when the
// client reports back.
type ExecutionService struct {
	cfg          *config.Config
	pool         *clients.ChainPool
	registry     *backends.Registry
	repo         repository.SwapExecutionRepository
	payloadCache *cache.PayloadCache
	publisher    events.Publisher
	relayers     map[uint64]*clients.RelayerClient
}

// NewExecutionService creates the execution engine. Relayer clients are
// dialed per network that configures one.
func NewExecutionService(
	cfg *config.Config,
	pool *clients.ChainPool,
	registry *backends.Registry,
	repo repository.SwapExecutionRepository,
	payloadCache *cache.PayloadCache,
	publisher events.Publisher,
) *ExecutionService {
	relayers := make(map[uint64]*clients.RelayerClient)
	for _, network := range cfg.Blockchain.Networks {
		if network.Enabled && network.RelayEnabled() {
			relayers[network.ChainID] = clients.NewRelayerClient(network.RelayerURL)
		}
	}
	return &ExecutionService{
		cfg:          cfg,
		pool:         pool,
		registry:     registry,
		repo:         repo,
		payloadCache: payloadCache,
		publisher:    publisher,
		relayers:     relayers,
	}
}

// ExecutionResult is the outcome handed back to the caller
type ExecutionResult struct {
	Execution *models.SwapExecution `json:"execution"`
	// Calldata is set in client-submit mode: the wallet execution call the
	// client must broadcast itself
	Calldata string `json:"calldata,omitempty"`
	Relayed  bool   `json:"relayed"`
}

// ExecuteWithSignature finalizes a built payload with the collected owner
// signatures. The cached payload is authoritative; if it expired, a
// caller-supplied copy of the signed payload is accepted as a degraded path
// after its hash is re-verified. With neither available the caller must
// rebuild and re-sign, because a silently rebuilt payload could differ from
// what was signed.
func (s *ExecutionService) ExecuteWithSignature(ctx context.Context, executionID, signaturesHex string, supplied *models.SafePayload) (*ExecutionResult, error) {
	execution, err := s.repo.Get(ctx, executionID)
	if err != nil {
		if err == repository.ErrExecutionNotFound {
			return nil, models.NewSwapError(models.ErrCodeValidation, "unknown execution id %s", executionID)
		}
		return nil, models.WrapSwapError(models.ErrCodeStoreUnavailable, err, "failed to load execution %s", executionID)
	}
	if execution.Status != models.ExecutionStatusPending {
		return nil, models.NewSwapError(models.ErrCodeValidation, "execution %s is already %s", executionID, execution.Status)
	}

	cached, ok, err := s.payloadCache.Get(ctx, executionID)
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeStoreUnavailable, err, "failed to read cached payload")
	}
	if !ok {
		metrics.PayloadCacheMisses.Inc()
		if supplied == nil {
			return nil, models.NewSwapError(models.ErrCodeMissingCachedPayload,
				"no cached payload for execution %s and none supplied; rebuild and re-sign", executionID)
		}
		cached, err = s.adoptSuppliedPayload(execution, supplied)
		if err != nil {
			return nil, err
		}
	}

	signatures, err := hex.DecodeString(strings.TrimPrefix(signaturesHex, "0x"))
	if err != nil || len(signatures) == 0 {
		return nil, models.NewSwapError(models.ErrCodeValidation, "signatures are not valid hex")
	}

	execCalldata, err := EncodeExecTransaction(&cached.Payload, signatures)
	if err != nil {
		return nil, err
	}

	if err := s.simulateExecution(ctx, execution, cached, execCalldata); err != nil {
		return nil, err
	}

	relayer, relayed := s.relayers[execution.ChainID]
	if !relayed {
		// client-submit mode: hand back the wallet call, stay PENDING until
		// the client reports the broadcast hash
		return &ExecutionResult{
			Execution: execution,
			Calldata:  "0x" + hex.EncodeToString(execCalldata),
			Relayed:   false,
		}, nil
	}

	resp, err := relayer.Submit(ctx, &clients.RelayRequest{
		RequestID: uuid.New().String(),
		ChainID:   execution.ChainID,
		To:        cached.Payload.Safe,
		Data:      "0x" + hex.EncodeToString(execCalldata),
		Value:     "0",
	})
	if err != nil {
		s.finalize(ctx, execution, models.ExecutionStatusPending, models.ExecutionStatusFailed, &repository.StatusUpdate{
			ErrorCode:    strPtr(string(models.ErrCodeInternal)),
			ErrorMessage: strPtr(err.Error()),
		})
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "relayer submission failed")
	}

	s.advance(ctx, execution, models.ExecutionStatusPending, models.ExecutionStatusRunning, &repository.StatusUpdate{
		TxHash: strPtr(resp.TxHash),
	})
	execution.TxHash = resp.TxHash

	if err := s.awaitReceipt(ctx, execution); err != nil {
		return nil, err
	}
	return &ExecutionResult{Execution: execution, Relayed: true}, nil
}

// adoptSuppliedPayload accepts a caller-supplied copy of the signed payload
// when the cache entry expired. The canonical hash is recomputed from the
// payload fields; a divergence means the copy is not what was signed.
func (s *ExecutionService) adoptSuppliedPayload(execution *models.SwapExecution, supplied *models.SafePayload) (*cache.CachedPayload, error) {
	hash, err := SafeTransactionHash(supplied)
	if err != nil {
		return nil, err
	}
	if supplied.Hash != "" && !strings.EqualFold(supplied.Hash, hash) {
		metrics.PayloadHashMismatches.Inc()
		return nil, models.NewSwapError(models.ErrCodeValidation,
			"supplied payload hashes to %s, not the signed %s", hash, supplied.Hash)
	}
	logrus.WithFields(logrus.Fields{
		"execution_id": execution.ID,
		"hash":         hash,
	}).Warn("Cached payload expired; executing verified caller-supplied payload")

	// a delegated bundle is only composed when approvals ride along
	return &cache.CachedPayload{
		Payload:       *supplied,
		Hash:          hash,
		BackendID:     execution.BackendID,
		NeedsApproval: supplied.Operation == models.SafeOperationDelegateCall,
	}, nil
}

// ReportClientSubmittedTransaction reconciles a client-broadcast hash with
// the ledger and drives the row to its terminal status from the receipt.
func (s *ExecutionService) ReportClientSubmittedTransaction(ctx context.Context, executionID, txHash string) (*models.SwapExecution, error) {
	if !strings.HasPrefix(txHash, "0x") || len(txHash) != 66 {
		return nil, models.NewSwapError(models.ErrCodeValidation, "txHash is not a valid transaction hash")
	}

	execution, err := s.repo.Get(ctx, executionID)
	if err != nil {
		if err == repository.ErrExecutionNotFound {
			return nil, models.NewSwapError(models.ErrCodeValidation, "unknown execution id %s", executionID)
		}
		return nil, models.WrapSwapError(models.ErrCodeStoreUnavailable, err, "failed to load execution %s", executionID)
	}

	switch execution.Status {
	case models.ExecutionStatusPending:
		s.advance(ctx, execution, models.ExecutionStatusPending, models.ExecutionStatusRunning, &repository.StatusUpdate{
			TxHash: strPtr(txHash),
		})
		execution.TxHash = txHash
	case models.ExecutionStatusRunning:
		// a retried report with the same hash is harmless; a different hash
		// for an in-flight row is a client error
		if execution.TxHash != "" && !strings.EqualFold(execution.TxHash, txHash) {
			return nil, models.NewSwapError(models.ErrCodeValidation,
				"execution %s already tracks transaction %s", executionID, execution.TxHash)
		}
	default:
		return execution, nil
	}

	if err := s.awaitReceipt(ctx, execution); err != nil {
		return execution, err
	}
	return execution, nil
}

// ListByWallet returns a wallet's most recent executions
func (s *ExecutionService) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.SwapExecution, error) {
	if !common.IsHexAddress(wallet) {
		return nil, models.NewSwapError(models.ErrCodeValidation, "wallet is not a valid address")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	executions, err := s.repo.ListByWallet(ctx, wallet, limit)
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeStoreUnavailable, err, "failed to list executions")
	}
	return executions, nil
}

// Get returns the ledger row
func (s *ExecutionService) Get(ctx context.Context, executionID string) (*models.SwapExecution, error) {
	execution, err := s.repo.Get(ctx, executionID)
	if err == repository.ErrExecutionNotFound {
		return nil, models.NewSwapError(models.ErrCodeValidation, "unknown execution id %s", executionID)
	}
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeStoreUnavailable, err, "failed to load execution %s", executionID)
	}
	return execution, nil
}

// simulateExecution dry-runs the wallet call. Allowance-shaped failures are
// tolerated when the payload already bundles its approval grants, since the
// grant only takes effect inside the very transaction being simulated.
func (s *ExecutionService) simulateExecution(ctx context.Context, execution *models.SwapExecution, cached *cache.CachedPayload, execCalldata []byte) error {
	client, ok := s.pool.Get(execution.ChainID)
	if !ok {
		return models.NewSwapError(models.ErrCodeChainUnsupported, "no chain client for chain %d", execution.ChainID)
	}

	err := client.SimulateCall(ctx, execution.Wallet, cached.Payload.Safe, execCalldata, nil)
	if err == nil {
		return nil
	}

	if cached.NeedsApproval && isAllowanceFailure(err) {
		logrus.WithFields(logrus.Fields{
			"execution_id": execution.ID,
			"reason":       err.Error(),
		}).Debug("Ignoring allowance simulation failure for bundled approval")
		return nil
	}

	s.finalize(ctx, execution, models.ExecutionStatusPending, models.ExecutionStatusFailed, &repository.StatusUpdate{
		ErrorCode:    strPtr(string(models.ErrCodeSimulationFailed)),
		ErrorMessage: strPtr(err.Error()),
	})
	return models.WrapSwapError(models.ErrCodeSimulationFailed, err, "execution simulation reverted")
}

func isAllowanceFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "allowance") ||
		strings.Contains(msg, "transfer_from") ||
		strings.Contains(msg, "transferfrom") ||
		strings.Contains(msg, "transfer amount exceeds allowance")
}

// awaitReceipt blocks until the transaction confirms or the wait window
// closes, then finalizes the ledger row.
func (s *ExecutionService) awaitReceipt(ctx context.Context, execution *models.SwapExecution) error {
	client, ok := s.pool.Get(execution.ChainID)
	if !ok {
		return models.NewSwapError(models.ErrCodeChainUnsupported, "no chain client for chain %d", execution.ChainID)
	}

	timeout := time.Duration(s.cfg.Blockchain.ReceiptTimeout) * time.Second
	poll := time.Duration(s.cfg.Blockchain.ReceiptPollInterval) * time.Second
	start := time.Now()

	receipt, err := clients.WaitForReceipt(ctx, client, execution.TxHash, timeout, poll)
	if err != nil {
		metrics.ReceiptWaitTimeouts.Inc()
		s.finalize(ctx, execution, models.ExecutionStatusRunning, models.ExecutionStatusFailed, &repository.StatusUpdate{
			ErrorCode:    strPtr(string(models.ErrCodeReceiptNotFound)),
			ErrorMessage: strPtr("no receipt within the confirmation window"),
		})
		return models.WrapSwapError(models.ErrCodeReceiptNotFound, err,
			"transaction %s has no receipt after %s", execution.TxHash, timeout)
	}

	metrics.ExecutionDuration.WithLabelValues(execution.BackendID).Observe(time.Since(start).Seconds())

	if receipt.Status != types.ReceiptStatusSuccessful {
		s.finalize(ctx, execution, models.ExecutionStatusRunning, models.ExecutionStatusFailed, &repository.StatusUpdate{
			GasUsed:      u64Ptr(receipt.GasUsed),
			BlockNumber:  u64Ptr(receipt.BlockNumber.Uint64()),
			ErrorCode:    strPtr(string(models.ErrCodeTxReverted)),
			ErrorMessage: strPtr("transaction reverted on chain"),
		})
		return models.NewSwapError(models.ErrCodeTxReverted, "transaction %s reverted", execution.TxHash)
	}

	update := &repository.StatusUpdate{
		GasUsed:     u64Ptr(receipt.GasUsed),
		BlockNumber: u64Ptr(receipt.BlockNumber.Uint64()),
	}
	if out := amountOutFromLogs(receipt, execution); out != "" {
		update.AmountOut = strPtr(out)
		execution.AmountOut = &out
	}
	s.finalize(ctx, execution, models.ExecutionStatusRunning, models.ExecutionStatusSuccess, update)

	s.payloadCache.Delete(ctx, execution.ID)
	return nil
}

// amountOutFromLogs scans the receipt for a Transfer of the output token to
// the wallet. Best effort: exotic tokens or native-asset outputs yield
// nothing and the realized amount stays unset.
func amountOutFromLogs(receipt *types.Receipt, execution *models.SwapExecution) string {
	if models.IsNativeAsset(execution.ToToken) {
		return ""
	}
	token := common.HexToAddress(execution.ToToken)
	wallet := common.HexToAddress(execution.Wallet)
	for i := len(receipt.Logs) - 1; i >= 0; i-- {
		log := receipt.Logs[i]
		if log.Address != token || len(log.Topics) != 3 || log.Topics[0] != clients.TransferEventTopic {
			continue
		}
		if common.BytesToAddress(log.Topics[2].Bytes()) != wallet {
			continue
		}
		amount, err := clients.UnpackUint256(log.Data)
		if err != nil {
			continue
		}
		return amount.String()
	}
	return ""
}

// advance moves the in-memory row and the store forward. Ledger writes are
// best effort once the transaction is in flight; a store hiccup must not
// orphan a broadcast transaction.
func (s *ExecutionService) advance(ctx context.Context, execution *models.SwapExecution, from, to models.ExecutionStatus, update *repository.StatusUpdate) {
	if err := s.repo.UpdateStatus(ctx, execution.ID, from, to, update); err != nil {
		logrus.WithFields(logrus.Fields{
			"execution_id": execution.ID,
			"from":         from,
			"to":           to,
		}).WithError(err).Warn("Failed to persist execution status")
	}
	execution.Status = to

	s.publisher.PublishExecutionStatus(&events.ExecutionEvent{
		ExecutionID: execution.ID,
		BackendID:   execution.BackendID,
		ChainID:     execution.ChainID,
		Wallet:      execution.Wallet,
		Status:      to,
		TxHash:      execution.TxHash,
		Timestamp:   time.Now(),
	})
}

func (s *ExecutionService) finalize(ctx context.Context, execution *models.SwapExecution, from, to models.ExecutionStatus, update *repository.StatusUpdate) {
	s.advance(ctx, execution, from, to, update)
	if update != nil {
		if update.ErrorCode != nil {
			execution.ErrorCode = *update.ErrorCode
		}
		if update.GasUsed != nil {
			execution.GasUsed = *update.GasUsed
		}
		if update.BlockNumber != nil {
			execution.BlockNumber = update.BlockNumber
		}
	}
	metrics.ExecutionsTotal.WithLabelValues(execution.BackendID, string(to)).Inc()
}

func strPtr(s string) *string { return &s }
func u64Ptr(v uint64) *uint64 { return &v }
