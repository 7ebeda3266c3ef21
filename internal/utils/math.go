package utils

import "math/big"

// BpsDenominator basis-point denominator for slippage arithmetic
const BpsDenominator = 10000

// ApplySlippageDown computes floor(amount * (10000 - bps) / 10000).
// Used for the minimum acceptable output of an exact-input swap. Integer
// arithmetic only; floating point would drift on large base-unit amounts.
func ApplySlippageDown(amount *big.Int, bps int64) *big.Int {
	if amount == nil {
		return nil
	}
	n := new(big.Int).Mul(amount, big.NewInt(BpsDenominator-bps))
	return n.Quo(n, big.NewInt(BpsDenominator))
}

// ApplySlippageUp computes ceil(amount * (10000 + bps) / 10000).
// Used for the maximum acceptable input of an exact-output swap.
func ApplySlippageUp(amount *big.Int, bps int64) *big.Int {
	if amount == nil {
		return nil
	}
	n := new(big.Int).Mul(amount, big.NewInt(BpsDenominator+bps))
	d := big.NewInt(BpsDenominator)
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
