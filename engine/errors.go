package engine

import (
	"errors"
	"fmt"
)

// Rejection categories. Every error returned by an action wraps exactly one
// of these, so callers can classify with errors.Is.
var (
	ErrIllegalMove         = errors.New("illegal move")
	ErrInvalidDisposition  = errors.New("invalid disposition")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNoPendingObligation = errors.New("no pending obligation")

	// ErrInvariantViolation is fatal: the state is corrupt and the game must
	// be abandoned.
	ErrInvariantViolation = errors.New("invariant violation")
)

func illegalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalMove, fmt.Sprintf(format, args...))
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
