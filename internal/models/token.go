package models

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeTokenAddress is the pseudo-address aggregators use for the chain's
// native asset. The zero address is accepted as an equivalent spelling.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// ZeroAddress is the EVM zero address
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// TokenAmount is an amount of a fungible asset in integer base units.
// Amounts never leave base-unit integer form inside the pipeline; human
// decimal strings exist only at the API boundary.
type TokenAmount struct {
	Address  string   `json:"address"`
	Decimals int      `json:"decimals"`
	Amount   *big.Int `json:"amount"`
}

// NewTokenAmount creates a TokenAmount from base units
func NewTokenAmount(address string, decimals int, amount *big.Int) TokenAmount {
	return TokenAmount{Address: address, Decimals: decimals, Amount: amount}
}

// ParseTokenAmount normalizes a human-facing decimal amount into base units.
// Rejects negative, non-finite, and over-precise inputs: an amount with more
// fractional digits than the asset's decimals would silently truncate, so it
// is an error instead.
func ParseTokenAmount(address string, decimals int, human string) (TokenAmount, error) {
	if decimals < 0 || decimals > 77 {
		return TokenAmount{}, fmt.Errorf("invalid decimals: %d", decimals)
	}

	d, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return TokenAmount{}, fmt.Errorf("invalid amount %q: %w", human, err)
	}
	if d.IsNegative() {
		return TokenAmount{}, fmt.Errorf("amount must not be negative: %s", human)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return TokenAmount{}, fmt.Errorf("amount %s exceeds %d decimal places", human, decimals)
	}

	return TokenAmount{
		Address:  address,
		Decimals: decimals,
		Amount:   shifted.BigInt(),
	}, nil
}

// Human renders the base-unit amount back to a decimal string
func (t TokenAmount) Human() string {
	if t.Amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(t.Amount, -int32(t.Decimals)).String()
}

// BaseUnits renders the amount as a decimal-string-encoded integer
func (t TokenAmount) BaseUnits() string {
	if t.Amount == nil {
		return "0"
	}
	return t.Amount.String()
}

// IsNative reports whether the asset is the chain's native currency.
// Native assets never require an ERC-20 approval.
func (t TokenAmount) IsNative() bool {
	return IsNativeAsset(t.Address)
}

// IsNativeAsset reports whether address denotes the native asset
func IsNativeAsset(address string) bool {
	return strings.EqualFold(address, NativeTokenAddress) || strings.EqualFold(address, ZeroAddress)
}
