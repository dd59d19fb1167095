package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrIneligibleUser    = errors.New("user not eligible for remittance")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrAmountOutOfRange  = errors.New("amount outside configured bounds")
	ErrFeeExceedsAmount  = errors.New("computed fee exceeds transaction amount")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrMissingReference  = errors.New("provider reference missing")
	ErrDatabase          = errors.New("database error")
)

// InvalidStateError reports an operation invoked against a transaction that
// is not in the operation's required status. Distinct from ErrConflict: this
// means the caller's own read already showed the wrong status, while
// ErrConflict means the status moved between read and write.
type InvalidStateError struct {
	Current  TransactionStatus
	Expected TransactionStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("transaction in invalid state: current=%s, expected=%s", e.Current, e.Expected)
}

func NewInvalidState(current, expected TransactionStatus) error {
	return &InvalidStateError{Current: current, Expected: expected}
}

// ExternalServiceError wraps a failure from one of the provider integrations.
type ExternalServiceError struct {
	Provider string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func NewExternalServiceError(provider string, err error) error {
	return &ExternalServiceError{Provider: provider, Err: err}
}
