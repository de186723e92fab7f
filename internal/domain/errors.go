package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across pipeline stages.
var (
	// ErrUnsupportedQuote marks a pool that does not quote in wrapped SOL
	// after orientation normalization. A skip, not an operator error.
	ErrUnsupportedQuote = errors.New("pool does not quote in wrapped SOL")

	// ErrMissingAccount marks an expected on-chain account that does not
	// exist. Surfaced as an indeterminate safety verdict.
	ErrMissingAccount = errors.New("expected account does not exist")

	// ErrBroadcastExhausted means every relay attempt across every retry
	// failed. Escalates to the fallback provider.
	ErrBroadcastExhausted = errors.New("all broadcast attempts failed")
)

// DecodeError marks a malformed or unexpected on-chain account layout.
// Fatal for the current candidate only.
type DecodeError struct {
	Account string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Account, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConfirmError carries the signature of a transaction that was accepted by
// at least one relay but failed confirmation. The transaction may still
// land later, so the signature must not be discarded.
type ConfirmError struct {
	Signature string
	Err       error
}

func (e *ConfirmError) Error() string {
	return fmt.Sprintf("confirm transaction %s: %v", e.Signature, e.Err)
}

func (e *ConfirmError) Unwrap() error { return e.Err }
