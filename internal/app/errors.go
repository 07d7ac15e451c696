/**
 * @description
 * Error kinds reported by the ledger service.
 */
package app

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the concrete error is a *LedgerError.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyInactive = errors.New("already inactive")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrDataIntegrity   = errors.New("data integrity violation")
	ErrConfig          = errors.New("configuration error")
	ErrPersistence     = errors.New("persistence error")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrCycleInProgress = errors.New("weekly cycle in progress")
)

// LedgerError carries an error kind, the operation step that failed, a
// caller-facing message and the underlying cause, if any.
type LedgerError struct {
	Kind       error
	Op         string
	Message    string
	Err        error
	RetryAfter int
}

func (e *LedgerError) Error() string {
	if e.Err != nil && e.Kind == ErrPersistence {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, message string) *LedgerError {
	return &LedgerError{Kind: kind, Op: op, Message: message}
}

func persistenceError(op string, err error) *LedgerError {
	return &LedgerError{Kind: ErrPersistence, Op: op, Message: "failed to " + op, Err: err}
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Message
	}
	return err.Error()
}
