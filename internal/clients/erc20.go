package clients

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// mustType is a helper to create an abi.Type from a string
func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid type: %s: %v", t, err))
	}
	return typ
}

var (
	addressType = mustType("address")
	uint256Type = mustType("uint256")
	uint160Type = mustType("uint160")
	uint48Type  = mustType("uint48")

	allowanceSelector = crypto.Keccak256([]byte("allowance(address,address)"))[:4]
	approveSelector   = crypto.Keccak256([]byte("approve(address,uint256)"))[:4]

	// Permit2's approve(token,spender,amount,expiration) second hop
	permit2ApproveSelector = crypto.Keccak256([]byte("approve(address,address,uint160,uint48)"))[:4]

	// TransferEventTopic is the ERC-20 Transfer(address,address,uint256) log topic
	TransferEventTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// MaxUint256 the unbounded approval amount
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// PackAllowance encodes allowance(owner, spender)
func PackAllowance(owner, spender string) []byte {
	args := abi.Arguments{{Type: addressType}, {Type: addressType}}
	data, _ := args.Pack(common.HexToAddress(owner), common.HexToAddress(spender))
	return append(append([]byte{}, allowanceSelector...), data...)
}

// PackApprove encodes approve(spender, amount)
func PackApprove(spender string, amount *big.Int) []byte {
	args := abi.Arguments{{Type: addressType}, {Type: uint256Type}}
	data, _ := args.Pack(common.HexToAddress(spender), amount)
	return append(append([]byte{}, approveSelector...), data...)
}

// PackPermit2Approve encodes Permit2's approve(token, spender, amount, expiration):
// a capped, time-boxed grant from the Permit2 intermediary to the router.
func PackPermit2Approve(token, spender string, amount *big.Int, expiration int64) []byte {
	args := abi.Arguments{
		{Type: addressType},
		{Type: addressType},
		{Type: uint160Type},
		{Type: uint48Type},
	}
	data, _ := args.Pack(
		common.HexToAddress(token),
		common.HexToAddress(spender),
		amount,
		big.NewInt(expiration),
	)
	return append(append([]byte{}, permit2ApproveSelector...), data...)
}

// UnpackUint256 decodes a single uint256 return value
func UnpackUint256(data []byte) (*big.Int, error) {
	args := abi.Arguments{{Type: uint256Type}}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack uint256: %w", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected return type %T", values[0])
	}
	return amount, nil
}
