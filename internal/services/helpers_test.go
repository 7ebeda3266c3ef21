package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"swap-backend/internal/clients"
	"swap-backend/internal/config"
	"swap-backend/internal/models"
	"swap-backend/internal/repository"

	"github.com/ethereum/go-ethereum/core/types"
)

// fakeChainClient scripts chain reads per test
type fakeChainClient struct {
	chainID    uint64
	callFn     func(to string, data []byte) ([]byte, error)
	simulateFn func(from, to string, data []byte) error
	receiptFn  func(txHash string) (*types.Receipt, error)
}

func (c *fakeChainClient) ChainID() uint64 { return c.chainID }

func (c *fakeChainClient) CallContract(_ context.Context, to string, data []byte) ([]byte, error) {
	if c.callFn == nil {
		return nil, errors.New("unexpected call")
	}
	return c.callFn(to, data)
}

func (c *fakeChainClient) SimulateCall(_ context.Context, from, to string, data []byte, _ *big.Int) error {
	if c.simulateFn == nil {
		return nil
	}
	return c.simulateFn(from, to, data)
}

func (c *fakeChainClient) EstimateGas(context.Context, string, string, []byte, *big.Int) (uint64, error) {
	return 21000, nil
}

func (c *fakeChainClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (c *fakeChainClient) SendRawTransaction(context.Context, []byte) (string, error) {
	return "", errors.New("not supported")
}

func (c *fakeChainClient) TransactionReceipt(_ context.Context, txHash string) (*types.Receipt, error) {
	if c.receiptFn == nil {
		return nil, clients.ErrReceiptNotFound
	}
	return c.receiptFn(txHash)
}

// memoryRepository is an in-memory SwapExecutionRepository for tests
type memoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.SwapExecution
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{rows: make(map[string]*models.SwapExecution)}
}

func (r *memoryRepository) Create(_ context.Context, execution *models.SwapExecution) (*models.SwapExecution, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[execution.ID]; ok {
		clone := *existing
		return &clone, false, nil
	}
	clone := *execution
	r.rows[execution.ID] = &clone
	result := clone
	return &result, true, nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (*models.SwapExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrExecutionNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id string, from, to models.ExecutionStatus, update *repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return repository.ErrExecutionNotFound
	}
	if row.Status != from || !models.CanTransition(from, to) {
		return repository.ErrInvalidStatusTransition
	}
	row.Status = to
	if update != nil {
		if update.TxHash != nil {
			row.TxHash = *update.TxHash
		}
		if update.GasUsed != nil {
			row.GasUsed = *update.GasUsed
		}
		if update.BlockNumber != nil {
			row.BlockNumber = update.BlockNumber
		}
		if update.AmountOut != nil {
			row.AmountOut = update.AmountOut
		}
		if update.ErrorCode != nil {
			row.ErrorCode = *update.ErrorCode
		}
		if update.ErrorMessage != nil {
			row.ErrorMessage = *update.ErrorMessage
		}
	}
	return nil
}

func (r *memoryRepository) ListByWallet(_ context.Context, wallet string, _ int) ([]models.SwapExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SwapExecution
	for _, row := range r.rows {
		if strings.EqualFold(row.Wallet, wallet) {
			out = append(out, *row)
		}
	}
	return out, nil
}

// testConfig builds a minimal enabled single-network config
func testConfig() *config.Config {
	return &config.Config{
		Blockchain: config.BlockchainConfig{
			Networks: map[string]config.NetworkConfig{
				"mainnet": {
					ChainID:   1,
					Name:      "mainnet",
					MultiSend: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
					Permit2:   "0x5555555555555555555555555555555555555555",
					Enabled:   true,
				},
			},
			ReceiptTimeout:      1,
			ReceiptPollInterval: 1,
		},
		Swap: config.SwapConfig{
			MinAmountBaseUnits:  "1000",
			MaxSlippageBps:      500,
			RateLimitPerHour:    10,
			SpamCooldownSeconds: 10,
			PayloadTTLSeconds:   300,
			QuoteTTLSeconds:     300,
		},
	}
}
