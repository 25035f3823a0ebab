package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks event data that does not match the expected word layout.
	ErrDecode = errors.New("decode error")
	// ErrState marks a transfer that cannot be applied to the persisted state.
	ErrState = errors.New("state error")
	// ErrSyncNotInitialized is returned when the cursor has never been seeded.
	ErrSyncNotInitialized = errors.New("sync cursor not initialized")
)

// DecodeError records a decode failure for one event.
type DecodeError struct {
	Kind        TransferKind
	Contract    Felt
	BlockNumber uint64
	Reason      string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event from %s at block %d: %s", e.Kind, e.Contract.Hex(), e.BlockNumber, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// StateError records a transfer rejected by the reconciler.
type StateError struct {
	Contract Felt
	TokenID  *WideUint
	Account  Felt
	Reason   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("contract %s token %s account %s: %s",
		e.Contract.Hex(), FormatWideUint(e.TokenID), e.Account.Hex(), e.Reason)
}

func (e *StateError) Unwrap() error {
	return ErrState
}
