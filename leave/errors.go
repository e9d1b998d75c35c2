/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP layer, scheduler) branch with errors.Is and the helper
  predicates at the bottom.

ERROR CATEGORIES:
  1. Lookup errors - Unknown employee or request ids
  2. Validation errors - Invalid ranges, terminal-status transitions
  3. Balance errors - Deductions that would go negative
  4. Concurrency errors - Optimistic-concurrency conflicts

USAGE:
    if errors.Is(err, leave.ErrInsufficientBalance) {
        // surface 409 to the caller, request stays pending
    }

SEE ALSO:
  - ledger.go: Raises balance and conflict errors
  - request.go: Raises range and status errors
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an employee or request id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRange is returned when a request's end date precedes its
	// start date.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrInsufficientBalance is returned when applying a deduction would
	// push a balance negative. Balances are capped, never wrapped.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict is returned when an optimistic-concurrency save detects
	// a concurrent write. Safe to re-read and retry.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrTerminalStatus is returned when transitioning a request that is
	// already approved or rejected to a different status.
	ErrTerminalStatus = errors.New("request status is terminal")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a balance shortage at deduction time.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Available  decimal.Decimal // day-equivalent available
	Requested  decimal.Decimal // day-equivalent requested
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s days, requested %s days",
		e.EmployeeID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ConflictError details a lost optimistic-concurrency race.
type ConflictError struct {
	EmployeeID EmployeeID
	Version    int64 // version the writer held
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of employee %s (stale version %d)",
		e.EmployeeID, e.Version)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// RequestConflictError details a lost race on a request save.
type RequestConflictError struct {
	RequestID RequestID
	Version   int64 // version the writer held
}

func (e *RequestConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of request %s (stale version %d)",
		e.RequestID, e.Version)
}

func (e *RequestConflictError) Unwrap() error {
	return ErrConflict
}

// TransitionError details a rejected status transition.
type TransitionError struct {
	RequestID RequestID
	From      RequestStatus
	To        RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot transition %s -> %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrTerminalStatus
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrTerminalStatus)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
