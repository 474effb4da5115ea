package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"ok":                   nil,
		"insufficient_balance": fmt.Errorf("transfer: %w", ErrInsufficientBalance),
		"not_found":            fmt.Errorf("withdraw: deposit 3: %w", ErrNotFound),
		"already_withdrawn":    ErrAlreadyWithdrawn,
		"not_matured":          ErrNotMatured,
		"invalid_recipient":    ErrInvalidRecipient,
		"invalid_amount":       ErrInvalidAmount,
		"invalid_input":        ErrInvalidInput,
		"internal":             errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, ErrorKind(err))
	}
}

func TestIsError(t *testing.T) {
	err := fmt.Errorf("create deposit: %w", ErrInsufficientBalance)
	assert.True(t, IsError(err, ErrInsufficientBalance))
	assert.False(t, IsError(err, ErrNotFound))
}
