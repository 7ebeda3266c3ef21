package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"swap-backend/internal/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// ErrReceiptNotFound is the distinguishable "no receipt observed" outcome,
// as opposed to a definitive revert.
var ErrReceiptNotFound = errors.New("transaction receipt not found")

// ChainClient is the chain access surface the swap core needs: reads, gas
// estimation, simulation, broadcast, and receipt retrieval.
type ChainClient interface {
	ChainID() uint64
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
	SimulateCall(ctx context.Context, from, to string, data []byte, value *big.Int) error
	EstimateGas(ctx context.Context, from, to string, data []byte, value *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendRawTransaction(ctx context.Context, rawTx []byte) (string, error)
	TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

// EthChainClient implements ChainClient over go-ethereum's ethclient
type EthChainClient struct {
	client  *ethclient.Client
	chainID uint64
}

// DialChainClient connects to the first healthy RPC endpoint of a network.
// Each endpoint is verified with a NetworkID round trip before being kept.
func DialChainClient(ctx context.Context, network *config.NetworkConfig) (*EthChainClient, error) {
	var lastErr error
	for _, endpoint := range network.RPCEndpoints {
		client, err := ethclient.Dial(endpoint)
		if err != nil {
			lastErr = err
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		networkID, err := client.NetworkID(checkCtx)
		cancel()
		if err != nil {
			client.Close()
			lastErr = err
			continue
		}

		logrus.WithFields(logrus.Fields{
			"network":  network.Name,
			"chainId":  network.ChainID,
			"endpoint": endpoint,
			"netId":    networkID.String(),
		}).Info("connected to RPC endpoint")

		return &EthChainClient{client: client, chainID: network.ChainID}, nil
	}
	return nil, fmt.Errorf("failed to connect to any RPC endpoint for %s: %w", network.Name, lastErr)
}

func (c *EthChainClient) ChainID() uint64 {
	return c.chainID
}

func (c *EthChainClient) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	addr := common.HexToAddress(to)
	return c.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
}

// SimulateCall runs the call as the given sender without broadcasting.
// A revert surfaces as an error whose message carries the revert reason.
func (c *EthChainClient) SimulateCall(ctx context.Context, from, to string, data []byte, value *big.Int) error {
	addr := common.HexToAddress(to)
	_, err := c.client.CallContract(ctx, ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &addr,
		Data:  data,
		Value: value,
	}, nil)
	return err
}

func (c *EthChainClient) EstimateGas(ctx context.Context, from, to string, data []byte, value *big.Int) (uint64, error) {
	addr := common.HexToAddress(to)
	return c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &addr,
		Data:  data,
		Value: value,
	})
}

func (c *EthChainClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.client.SuggestGasPrice(ctx)
}

func (c *EthChainClient) SendRawTransaction(ctx context.Context, rawTx []byte) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return "", fmt.Errorf("failed to decode raw transaction: %w", err)
	}
	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return tx.Hash().Hex(), nil
}

func (c *EthChainClient) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrReceiptNotFound
	}
	return receipt, err
}

// Close releases the underlying RPC connection
func (c *EthChainClient) Close() {
	c.client.Close()
}

// ChainPool holds one connected client per chain id. Built once at startup
// and injected; lookups are read-only afterwards.
type ChainPool struct {
	clients map[uint64]ChainClient
}

// NewChainPool creates a pool from already-connected clients
func NewChainPool(clients ...ChainClient) *ChainPool {
	pool := &ChainPool{clients: make(map[uint64]ChainClient, len(clients))}
	for _, client := range clients {
		pool.clients[client.ChainID()] = client
	}
	return pool
}

// Get returns the client for a chain id
func (p *ChainPool) Get(chainID uint64) (ChainClient, bool) {
	client, ok := p.clients[chainID]
	return client, ok
}

// ChainIDs returns the connected chain ids
func (p *ChainPool) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(p.clients))
	for id := range p.clients {
		ids = append(ids, id)
	}
	return ids
}

// WaitForReceipt polls for the receipt until it appears or the timeout
// elapses. Returns ErrReceiptNotFound on expiry so callers can distinguish
// "never observed" from a definitive revert in the receipt itself.
func WaitForReceipt(ctx context.Context, client ChainClient, txHash string, timeout, pollInterval time.Duration) (*types.Receipt, error) {
	deadline := time.Now().Add(timeout)
	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ErrReceiptNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrReceiptNotFound
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
