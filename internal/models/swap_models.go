package models

import (
	"math/big"
	"time"
)

// SwapKind exact-in vs exact-out swap intent
type SwapKind string

const (
	SwapKindExactIn  SwapKind = "EXACT_IN"
	SwapKindExactOut SwapKind = "EXACT_OUT"
)

// GasPreference caller's gas price preference
type GasPreference string

const (
	GasPreferenceSlow   GasPreference = "slow"
	GasPreferenceNormal GasPreference = "normal"
	GasPreferenceFast   GasPreference = "fast"
)

// SwapRequest represents a caller's swap intent. Amount is the human-facing
// decimal string; the guard normalizes it into FromAmount (base units)
// before any backend is consulted.
type SwapRequest struct {
	ChainID       uint64        `json:"chainId"`
	FromToken     string        `json:"fromToken"`
	FromDecimals  int           `json:"fromDecimals"`
	ToToken       string        `json:"toToken"`
	ToDecimals    int           `json:"toDecimals"`
	Amount        string        `json:"amount"`
	Kind          SwapKind      `json:"kind"`
	Wallet        string        `json:"wallet"`
	Recipient     string        `json:"recipient"`
	SlippageBps   int64         `json:"slippageBps"`
	GasPreference GasPreference `json:"gasPreference,omitempty"`

	// FromAmount is the normalized base-unit amount, set by the guard
	FromAmount *big.Int `json:"-"`
}

// ============================================================================
// Quote payloads (one variant per backend)
// ============================================================================

// QuotePayload is the tagged union of backend-opaque quote data. Each
// backend contributes exactly one variant; downstream code type-switches
// instead of probing untyped blobs.
type QuotePayload interface {
	PayloadBackend() string
}

// ZeroExPayload carries the 0x-style aggregator's ready-made router call.
// AllowanceTarget is the spender the aggregator designates in the quote.
type ZeroExPayload struct {
	To              string `json:"to"`
	Data            string `json:"data"`
	Value           string `json:"value"`
	AllowanceTarget string `json:"allowanceTarget"`
	Gas             uint64 `json:"gas"`
}

func (ZeroExPayload) PayloadBackend() string { return "zeroex" }

// UniswapPayload carries the selected fee tier and the contract addresses
// the action-list call is built against.
type UniswapPayload struct {
	FeeTier  uint32 `json:"feeTier"`
	Router   string `json:"router"`
	Quoter   string `json:"quoter"`
	Permit2  string `json:"permit2"`
	Deadline int64  `json:"deadline"`
}

func (UniswapPayload) PayloadBackend() string { return "uniswap" }

// LiFiStep one step of a cross-chain route; only the first step's call is
// executable on the source chain.
type LiFiStep struct {
	Tool   string `json:"tool"`
	Type   string `json:"type"`
	To     string `json:"to"`
	Data   string `json:"data"`
	Value  string `json:"value"`
	Target string `json:"target,omitempty"`
}

// LiFiPayload carries the routed step sequence and the approval address the
// route designates.
type LiFiPayload struct {
	Tool            string     `json:"tool"`
	ApprovalAddress string     `json:"approvalAddress"`
	Steps           []LiFiStep `json:"steps"`
}

func (LiFiPayload) PayloadBackend() string { return "lifi" }

// ============================================================================
// Quote / call / multisig payload
// ============================================================================

// Quote is a backend's priced, time-bounded offer
type Quote struct {
	BackendID    string       `json:"backendId"`
	ChainID      uint64       `json:"chainId"`
	AmountIn     *big.Int     `json:"amountIn"`
	AmountOut    *big.Int     `json:"amountOut"`
	MinAmountOut *big.Int     `json:"minAmountOut,omitempty"`
	MaxAmountIn  *big.Int     `json:"maxAmountIn,omitempty"`
	RouteHint    string       `json:"routeHint,omitempty"`
	GasEstimate  uint64       `json:"gasEstimate,omitempty"`
	Payload      QuotePayload `json:"-"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// Expired reports whether the quote is past its validity window
func (q *Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

// PreparedCall is one concrete contract invocation
type PreparedCall struct {
	Target   string   `json:"target"`
	Calldata []byte   `json:"calldata"`
	Value    *big.Int `json:"value"`
}

// SafeOperation is the multisig wallet's call kind
type SafeOperation uint8

const (
	SafeOperationCall         SafeOperation = 0 // plain call
	SafeOperationDelegateCall SafeOperation = 1 // delegated multi-call bundle
)

// SafePayload is exactly what the multisig wallet signs: the call fields
// plus the signing-domain inputs captured at composition time. Once a
// signature exists the cached payload is authoritative; re-derivation is
// never substituted for it.
type SafePayload struct {
	Safe      string        `json:"safe"`
	ChainID   uint64        `json:"chainId"`
	Target    string        `json:"target"`
	Value     *big.Int      `json:"value"`
	Calldata  []byte        `json:"calldata"`
	Operation SafeOperation `json:"operation"`
	Nonce     uint64        `json:"nonce"`
	Hash      string        `json:"hash"`
}
