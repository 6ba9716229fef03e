package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors are detected before any write; the caller may fix the
// input and resubmit.
var (
	ErrDuplicateAccountNumber = errors.New("duplicate account number")
	ErrUnknownAccount         = errors.New("unknown account")
	ErrInvalidAccount         = errors.New("invalid account")
	ErrAccountReferenced      = errors.New("account is referenced by journal lines")
	ErrAccountHasBalance      = errors.New("account has a non-zero balance")

	ErrEmptyEntry      = errors.New("entry has no lines")
	ErrInvalidLine     = errors.New("invalid journal line")
	ErrUnbalancedEntry = errors.New("entry is not balanced")
	ErrUnknownEntry    = errors.New("unknown entry")
)

// ErrStorageFailure wraps any persistence error.
var ErrStorageFailure = errors.New("storage failure")

// UnknownAccountError names the account number that failed to resolve.
type UnknownAccountError struct {
	Number string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account %q", e.Number)
}

func (e *UnknownAccountError) Is(target error) bool {
	return target == ErrUnknownAccount
}

// UnbalancedEntryError carries the totals of a rejected entry.
type UnbalancedEntryError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("entry is not balanced: debits (%s) != credits (%s)",
		e.Debits.StringFixed(2), e.Credits.StringFixed(2))
}

func (e *UnbalancedEntryError) Is(target error) bool {
	return target == ErrUnbalancedEntry
}

// StorageError wraps a persistence failure with the operation that caused it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

// IsValidation reports whether err is one of the recoverable input errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrDuplicateAccountNumber, ErrUnknownAccount, ErrInvalidAccount,
		ErrAccountReferenced, ErrAccountHasBalance,
		ErrEmptyEntry, ErrInvalidLine, ErrUnbalancedEntry,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
