package models

import (
	"time"
)

// ExecutionStatus swap execution ledger status. Transitions are strictly
// forward: PENDING -> RUNNING -> SUCCESS | FAILED. Terminal rows are never
// mutated or deleted.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "PENDING"
	ExecutionStatusRunning ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
)

// CanTransition reports whether moving from -> to is a legal forward step
func CanTransition(from, to ExecutionStatus) bool {
	switch from {
	case ExecutionStatusPending:
		return to == ExecutionStatusRunning || to == ExecutionStatusSuccess || to == ExecutionStatusFailed
	case ExecutionStatusRunning:
		return to == ExecutionStatusSuccess || to == ExecutionStatusFailed
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// SwapExecution is one execution attempt's ledger row. The primary key is
// the client-supplied execution id, which makes creation idempotent: a
// re-submission with the same id upserts onto the existing row instead of
// duplicating it.
type SwapExecution struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(128)"`
	BackendID       string          `json:"backend_id" gorm:"type:varchar(32);not null;index"`
	ChainID         uint64          `json:"chain_id" gorm:"not null;index"`
	Wallet          string          `json:"wallet" gorm:"type:varchar(66);not null;index"`
	FromToken       string          `json:"from_token" gorm:"type:varchar(66);not null"`
	FromAmount      string          `json:"from_amount" gorm:"type:varchar(100);not null"` // base units, decimal string
	ToToken         string          `json:"to_token" gorm:"type:varchar(66);not null"`
	ExpectedOut     string          `json:"expected_out" gorm:"type:varchar(100)"` // quoted amount out, base units
	AmountOut       *string         `json:"amount_out,omitempty" gorm:"type:varchar(100)"`  // realized, best effort from receipt logs
	Status          ExecutionStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	TxHash          string          `json:"tx_hash" gorm:"type:varchar(66);index"`
	GasUsed         uint64          `json:"gas_used"`
	BlockNumber     *uint64         `json:"block_number,omitempty"`
	ErrorCode       string          `json:"error_code,omitempty" gorm:"type:varchar(40)"`
	ErrorMessage    string          `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName gorm table name
func (SwapExecution) TableName() string {
	return "swap_executions"
}
