package services

import (
	"context"
	"encoding/hex"
	"math/big"

	"swap-backend/internal/clients"
	"swap-backend/internal/config"
	"swap-backend/internal/models"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	domainSeparatorTypehash = crypto.Keccak256([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
	safeTxTypehash          = crypto.Keccak256([]byte("SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)"))

	nonceSelector     = crypto.Keccak256([]byte("nonce()"))[:4]
	multiSendSelector = crypto.Keccak256([]byte("multiSend(bytes)"))[:4]
	execTxSelector    = crypto.Keccak256([]byte("execTransaction(address,uint256,bytes,uint8,uint256,uint256,uint256,address,address,bytes)"))[:4]
)

var (
	msBytes32Type = mustMsType("bytes32")
	msAddressType = mustMsType("address")
	msUint256Type = mustMsType("uint256")
	msUint8Type   = mustMsType("uint8")
	msBytesType   = mustMsType("bytes")
)

func mustMsType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("invalid abi type " + t + ": " + err.Error())
	}
	return typ
}

// MultisigService composes multisig wallet transactions. A lone swap call
// becomes a plain CALL from the wallet; a swap preceded by approval grants
// becomes one DELEGATECALL into the multi-call helper so the grants and the
// swap land atomically, in order, in a single signed transaction.
type MultisigService struct {
	pool *clients.ChainPool
	cfg  *config.Config
}

// NewMultisigService creates the composer
func NewMultisigService(pool *clients.ChainPool, cfg *config.Config) *MultisigService {
	return &MultisigService{pool: pool, cfg: cfg}
}

// Compose builds the payload the wallet owners sign. Approval calls always
// precede the swap call in the bundle.
func (s *MultisigService) Compose(ctx context.Context, safe string, chainID uint64, approvals []models.PreparedCall, swap *models.PreparedCall) (*models.SafePayload, error) {
	nonce, err := s.readNonce(ctx, chainID, safe)
	if err != nil {
		return nil, err
	}

	payload := &models.SafePayload{
		Safe:    safe,
		ChainID: chainID,
		Nonce:   nonce,
	}

	if len(approvals) == 0 {
		payload.Target = swap.Target
		payload.Value = swap.Value
		payload.Calldata = swap.Calldata
		payload.Operation = models.SafeOperationCall
	} else {
		network, err := s.cfg.GetNetworkByChainID(chainID)
		if err != nil {
			return nil, models.WrapSwapError(models.ErrCodeChainUnsupported, err, "no network for chain %d", chainID)
		}
		if network.MultiSend == "" {
			return nil, models.NewSwapError(models.ErrCodeInternal, "chain %d has no multi-call helper configured", chainID)
		}
		bundle := append(append([]models.PreparedCall{}, approvals...), *swap)
		payload.Target = network.MultiSend
		payload.Value = big.NewInt(0)
		payload.Calldata = EncodeMultiSend(bundle)
		payload.Operation = models.SafeOperationDelegateCall
	}

	hash, err := SafeTransactionHash(payload)
	if err != nil {
		return nil, err
	}
	payload.Hash = hash
	return payload, nil
}

// EncodeMultiSend packs calls into the multi-call helper's packed format:
// per call one operation byte (always plain call inside the bundle), the
// 20-byte target, the 32-byte value, the 32-byte data length, then the data.
func EncodeMultiSend(calls []models.PreparedCall) []byte {
	var packed []byte
	for _, call := range calls {
		value := call.Value
		if value == nil {
			value = big.NewInt(0)
		}
		packed = append(packed, 0x00)
		packed = append(packed, common.HexToAddress(call.Target).Bytes()...)
		packed = append(packed, common.BigToHash(value).Bytes()...)
		packed = append(packed, common.BigToHash(big.NewInt(int64(len(call.Calldata)))).Bytes()...)
		packed = append(packed, call.Calldata...)
	}

	args := abi.Arguments{{Type: msBytesType}}
	encoded, err := args.Pack(packed)
	if err != nil {
		// bytes packing of an in-memory slice cannot fail
		panic("failed to pack multiSend payload: " + err.Error())
	}
	return append(append([]byte{}, multiSendSelector...), encoded...)
}

// SafeTransactionHash computes the canonical EIP-712 hash the owners sign:
// keccak256(0x19 0x01 || domainSeparator || safeTxStructHash). Gas fields
// and refund fields are zero; the wallet does not meter or refund here.
func SafeTransactionHash(payload *models.SafePayload) (string, error) {
	domainArgs := abi.Arguments{
		{Type: msBytes32Type},
		{Type: msUint256Type},
		{Type: msAddressType},
	}
	domainEncoded, err := domainArgs.Pack(
		common.BytesToHash(domainSeparatorTypehash),
		new(big.Int).SetUint64(payload.ChainID),
		common.HexToAddress(payload.Safe),
	)
	if err != nil {
		return "", models.WrapSwapError(models.ErrCodeInternal, err, "failed to encode signing domain")
	}
	domainSeparator := crypto.Keccak256(domainEncoded)

	value := payload.Value
	if value == nil {
		value = big.NewInt(0)
	}
	zero := big.NewInt(0)
	zeroAddr := common.Address{}
	structArgs := abi.Arguments{
		{Type: msBytes32Type}, // typehash
		{Type: msAddressType}, // to
		{Type: msUint256Type}, // value
		{Type: msBytes32Type}, // keccak256(data)
		{Type: msUint8Type},   // operation
		{Type: msUint256Type}, // safeTxGas
		{Type: msUint256Type}, // baseGas
		{Type: msUint256Type}, // gasPrice
		{Type: msAddressType}, // gasToken
		{Type: msAddressType}, // refundReceiver
		{Type: msUint256Type}, // nonce
	}
	structEncoded, err := structArgs.Pack(
		common.BytesToHash(safeTxTypehash),
		common.HexToAddress(payload.Target),
		value,
		common.BytesToHash(crypto.Keccak256(payload.Calldata)),
		uint8(payload.Operation),
		zero, zero, zero,
		zeroAddr, zeroAddr,
		new(big.Int).SetUint64(payload.Nonce),
	)
	if err != nil {
		return "", models.WrapSwapError(models.ErrCodeInternal, err, "failed to encode transaction struct")
	}
	structHash := crypto.Keccak256(structEncoded)

	preimage := append([]byte{0x19, 0x01}, domainSeparator...)
	preimage = append(preimage, structHash...)
	return "0x" + hex.EncodeToString(crypto.Keccak256(preimage)), nil
}

// EncodeExecTransaction builds the calldata submitted to the wallet itself:
// the signed payload's fields plus the collected owner signatures.
func EncodeExecTransaction(payload *models.SafePayload, signatures []byte) ([]byte, error) {
	value := payload.Value
	if value == nil {
		value = big.NewInt(0)
	}
	zero := big.NewInt(0)
	zeroAddr := common.Address{}
	args := abi.Arguments{
		{Type: msAddressType}, // to
		{Type: msUint256Type}, // value
		{Type: msBytesType},   // data
		{Type: msUint8Type},   // operation
		{Type: msUint256Type}, // safeTxGas
		{Type: msUint256Type}, // baseGas
		{Type: msUint256Type}, // gasPrice
		{Type: msAddressType}, // gasToken
		{Type: msAddressType}, // refundReceiver
		{Type: msBytesType},   // signatures
	}
	packed, err := args.Pack(
		common.HexToAddress(payload.Target),
		value,
		payload.Calldata,
		uint8(payload.Operation),
		zero, zero, zero,
		zeroAddr, zeroAddr,
		signatures,
	)
	if err != nil {
		return nil, models.WrapSwapError(models.ErrCodeInternal, err, "failed to encode wallet execution call")
	}
	return append(append([]byte{}, execTxSelector...), packed...), nil
}

func (s *MultisigService) readNonce(ctx context.Context, chainID uint64, safe string) (uint64, error) {
	client, ok := s.pool.Get(chainID)
	if !ok {
		return 0, models.NewSwapError(models.ErrCodeChainUnsupported, "no chain client for chain %d", chainID)
	}
	out, err := client.CallContract(ctx, safe, nonceSelector)
	if err != nil {
		return 0, models.WrapSwapError(models.ErrCodeInternal, err, "failed to read wallet nonce")
	}
	nonce, err := clients.UnpackUint256(out)
	if err != nil {
		return 0, err
	}
	return nonce.Uint64(), nil
}
