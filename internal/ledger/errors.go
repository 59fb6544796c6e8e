package ledger

import (
	"errors"
	"fmt"
)

// LedgerError represents an error detected by the ledger engine.
// It carries structured fields for diagnostics; Code identifies the
// category for programmatic handling.
type LedgerError struct {
	Code    ErrorCode
	Message string
	TxID    string
	Unit    string
	Account string
}

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeConservationViolation indicates a transaction's moves do
	// not balance per instrument. Two-sided moves make imbalance
	// unrepresentable, so this code is reserved for external log
	// producers; the engine itself cannot emit it.
	ErrCodeConservationViolation ErrorCode = "CONSERVATION_VIOLATION"

	// ErrCodeUnknownAccount indicates a move references an account
	// that was never registered.
	ErrCodeUnknownAccount ErrorCode = "UNKNOWN_ACCOUNT"

	// ErrCodeUnassignedInstrument indicates a move's unit has no
	// account-type assignment; the instrument mapping must be total.
	ErrCodeUnassignedInstrument ErrorCode = "UNASSIGNED_INSTRUMENT"

	// ErrCodeAmbiguousMapping indicates a conflicting re-registration
	// of an account or instrument.
	ErrCodeAmbiguousMapping ErrorCode = "AMBIGUOUS_MAPPING"
)

func (e *LedgerError) Error() string {
	switch {
	case e.TxID != "" && e.Unit != "":
		return fmt.Sprintf("%s: %s (tx=%s, unit=%s)", e.Code, e.Message, e.TxID, e.Unit)
	case e.TxID != "":
		return fmt.Sprintf("%s: %s (tx=%s)", e.Code, e.Message, e.TxID)
	case e.Account != "":
		return fmt.Sprintf("%s: %s (account=%s)", e.Code, e.Message, e.Account)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsConservationViolation reports whether err is a conservation
// rejection. Uses errors.As to handle wrapped errors.
func IsConservationViolation(err error) bool {
	var le *LedgerError
	return errors.As(err, &le) && le.Code == ErrCodeConservationViolation
}

// ReplayError reports a failure reconstructing state from the log.
type ReplayError struct {
	Offset int64
	Err    error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay at offset %d: %v", e.Offset, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}
