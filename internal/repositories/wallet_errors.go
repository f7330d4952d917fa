package repositories

import "fmt"

// WalletErrorCode enumerates repository error causes for wallet ledger operations.
type WalletErrorCode string

const (
	// WalletErrorUnknown represents an unspecified failure.
	WalletErrorUnknown WalletErrorCode = "wallet_unknown"
	// WalletErrorInsufficientBalance indicates the debit exceeds the current balance.
	WalletErrorInsufficientBalance WalletErrorCode = "wallet_insufficient_balance"
	// WalletErrorTransactionNotFound indicates the ledger row is missing.
	WalletErrorTransactionNotFound WalletErrorCode = "wallet_transaction_not_found"
	// WalletErrorDuplicateTransaction indicates a ledger row with the same ID already exists.
	WalletErrorDuplicateTransaction WalletErrorCode = "wallet_duplicate_transaction"
)

// WalletError wraps wallet-specific failures with machine readable codes.
type WalletError struct {
	Op      string
	Code    WalletErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *WalletError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *WalletError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewWalletError constructs a typed wallet error.
func NewWalletError(code WalletErrorCode, message string, err error) *WalletError {
	if message == "" {
		message = string(code)
	}
	return &WalletError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
