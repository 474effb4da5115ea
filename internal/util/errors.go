// internal/util/errors.go
package util

import "errors"

// Ledger and request validation errors.
var (
	ErrInvalidInput        = errors.New("invalid input provided")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyWithdrawn    = errors.New("fixed deposit already withdrawn")
	ErrNotMatured          = errors.New("fixed deposit not matured")
	ErrInvalidRecipient    = errors.New("invalid recipient")
)

// IsError reports whether err wraps target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// ErrorKind maps err to a stable snake_case tag. Unknown errors are "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyWithdrawn):
		return "already_withdrawn"
	case errors.Is(err, ErrNotMatured):
		return "not_matured"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
