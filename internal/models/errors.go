package models

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, machine-readable classification attached to every
// failure returned across the service boundary. Callers branch on the code;
// the message is informational only.
type ErrorCode string

const (
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeChainUnsupported     ErrorCode = "CHAIN_UNSUPPORTED"
	ErrCodeNoLiquidity          ErrorCode = "NO_LIQUIDITY"
	ErrCodeSimulationFailed     ErrorCode = "SIMULATION_FAILED"
	ErrCodeApprovalRequired     ErrorCode = "APPROVAL_REQUIRED"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeSpamGuardActive      ErrorCode = "SPAM_GUARD_ACTIVE"
	ErrCodeMissingCachedPayload ErrorCode = "MISSING_CACHED_PAYLOAD"
	ErrCodeReceiptNotFound      ErrorCode = "RECEIPT_NOT_FOUND"
	ErrCodeTxReverted           ErrorCode = "TX_REVERTED"
	ErrCodeStoreUnavailable     ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeBackendNotFound      ErrorCode = "BACKEND_NOT_FOUND"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// SwapError carries an ErrorCode through the pipeline so each layer can
// decide fallback/abort behavior without string matching.
type SwapError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *SwapError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

// NewSwapError creates a SwapError with a formatted message
func NewSwapError(code ErrorCode, format string, args ...interface{}) *SwapError {
	return &SwapError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapSwapError wraps an underlying error with a code and message
func WrapSwapError(code ErrorCode, err error, format string, args ...interface{}) *SwapError {
	return &SwapError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternal for untyped errors
func CodeOf(err error) ErrorCode {
	var se *SwapError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
